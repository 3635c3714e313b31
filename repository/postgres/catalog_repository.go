package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"gorm.io/gorm"
)

// CatalogRepository reads resources, services, customers, and scheduling
// exceptions, grounded on the event-service repository's plain
// First/Find read methods (GetEventByID, GetSeatsByIDs) generalized from
// an events catalog to a multi-tenant resource/service catalog.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetResource(ctx context.Context, tenant, resourceID string) (*model.Resource, error) {
	var res model.Resource
	err := r.db.WithContext(ctx).Where("tenant = ? AND id = ?", tenant, resourceID).First(&res).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return &res, nil
}

func (r *CatalogRepository) GetService(ctx context.Context, tenant, serviceID string) (*model.Service, error) {
	var svc model.Service
	err := r.db.WithContext(ctx).Where("tenant = ? AND id = ?", tenant, serviceID).First(&svc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &svc, nil
}

func (r *CatalogRepository) GetCustomer(ctx context.Context, tenant, customerID string) (*model.Customer, error) {
	var c model.Customer
	err := r.db.WithContext(ctx).Where("tenant = ? AND id = ?", tenant, customerID).First(&c).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &c, nil
}

func (r *CatalogRepository) ListBusinessHours(ctx context.Context, tenant, resourceID string) ([]model.BusinessHours, error) {
	var rows []model.BusinessHours
	err := r.db.WithContext(ctx).
		Where("tenant = ? AND (resource_id = ? OR resource_id IS NULL)", tenant, resourceID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list business hours: %w", err)
	}
	return rows, nil
}

func (r *CatalogRepository) ListHolidays(ctx context.Context, tenant string, from, to time.Time) ([]model.Holiday, error) {
	var rows []model.Holiday
	err := r.db.WithContext(ctx).
		Where("tenant = ? AND date >= ? AND date <= ?", tenant, from, to).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	return rows, nil
}

func (r *CatalogRepository) ListTimeOff(ctx context.Context, tenant, resourceID string, from, to time.Time) ([]model.ResourceTimeOff, error) {
	var rows []model.ResourceTimeOff
	err := r.db.WithContext(ctx).
		Where("tenant = ? AND resource_id = ? AND start < ? AND \"end\" > ?", tenant, resourceID, to, from).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list resource time off: %w", err)
	}
	return rows, nil
}

// ListTenants returns every known tenant ID, feeding background sweeps
// that iterate tenant by tenant rather than scan across all of them at once.
func (r *CatalogRepository) ListTenants(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Tenant{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return ids, nil
}
