package booking

import (
	"context"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/policy"
	"github.com/arunvm123/reservationengine/repository"
)

// ReferenceResolver loads the cached-reference-data surface the validator
// and coordinator run against, grounded on the event-service repository's
// pattern of resolving an event+seats bundle before evaluating a hold
// request, generalized to resource/service/customer/business-hours lookups.
type ReferenceResolver struct {
	catalog   repository.CatalogStore
	inventory repository.InventoryStore
	bookings  repository.BookingStore
}

func NewReferenceResolver(catalog repository.CatalogStore, inventory repository.InventoryStore, bookings repository.BookingStore) *ReferenceResolver {
	return &ReferenceResolver{catalog: catalog, inventory: inventory, bookings: bookings}
}

// Resolve builds one policy.ReferenceData per requested item, in request
// order, matching coordinator.Confirm's expectation that refs[i] describes
// items[i].
func (r *ReferenceResolver) Resolve(ctx context.Context, tenant, serviceID, customerID string, items []model.BookingItemRequest) ([]policy.ReferenceData, error) {
	service, err := r.catalog.GetService(ctx, tenant, serviceID)
	if err != nil {
		return nil, model.WrapAppError(model.ErrInternal, "failed to load service", err)
	}
	customer, err := r.catalog.GetCustomer(ctx, tenant, customerID)
	if err != nil {
		return nil, model.WrapAppError(model.ErrInternal, "failed to load customer", err)
	}
	activeCount := 0
	if customer != nil {
		activeCount, err = r.bookings.CountActiveForCustomer(ctx, tenant, customerID)
		if err != nil {
			return nil, model.WrapAppError(model.ErrInternal, "failed to count active bookings", err)
		}
	}

	refs := make([]policy.ReferenceData, len(items))
	for i, item := range items {
		resource, err := r.catalog.GetResource(ctx, tenant, item.ResourceID)
		if err != nil {
			return nil, model.WrapAppError(model.ErrInternal, "failed to load resource", err)
		}

		var timeslot *model.Timeslot
		var businessHours []model.BusinessHours
		var holidays []model.Holiday
		var timeOff []model.ResourceTimeOff
		if resource != nil {
			timeslot, err = r.inventory.FindTimeslot(ctx, tenant, item.ResourceID, item.Start, item.End)
			if err != nil {
				return nil, model.WrapAppError(model.ErrInternal, "failed to resolve timeslot", err)
			}
			businessHours, err = r.catalog.ListBusinessHours(ctx, tenant, item.ResourceID)
			if err != nil {
				return nil, model.WrapAppError(model.ErrInternal, "failed to load business hours", err)
			}
			holidays, err = r.catalog.ListHolidays(ctx, tenant, item.Start, item.End)
			if err != nil {
				return nil, model.WrapAppError(model.ErrInternal, "failed to load holidays", err)
			}
			timeOff, err = r.catalog.ListTimeOff(ctx, tenant, item.ResourceID, item.Start, item.End)
			if err != nil {
				return nil, model.WrapAppError(model.ErrInternal, "failed to load resource time off", err)
			}
		}

		refs[i] = policy.ReferenceData{
			Resource:      resource,
			Timeslot:      timeslot,
			Service:       service,
			Customer:      customer,
			BusinessHours: businessHours,
			Holidays:      holidays,
			TimeOff:       timeOff,
			ActiveCount:   activeCount,
			BatchAvailable: func(resourceID string, start, end time.Time, required int) (bool, error) {
				res, err := r.inventory.BatchAvailability(ctx, model.BatchAvailabilityQuery{
					ResourceID: resourceID, Start: start, End: end, Required: required,
				})
				if err != nil {
					return false, err
				}
				return res.Fits, nil
			},
			CustomerBookings: func(_ string) ([]model.BookingItemRequest, error) {
				existing, err := r.bookings.ListByCustomer(ctx, tenant, customerID, 100, 0)
				if err != nil {
					return nil, err
				}
				var out []model.BookingItemRequest
				for _, b := range existing {
					if b.Status != model.BookingStatusConfirmed && b.Status != model.BookingStatusTentative {
						continue
					}
					_, items, err := r.bookings.GetByID(ctx, tenant, b.ID)
					if err != nil {
						continue
					}
					for _, it := range items {
						ts, err := r.inventory.GetTimeslotByID(ctx, it.TimeslotID)
						if err != nil || ts == nil {
							continue
						}
						out = append(out, model.BookingItemRequest{
							ResourceID: it.ResourceID,
							Start:      ts.Start,
							End:        ts.End,
							Capacity:   it.ReservedCapacity,
						})
					}
				}
				return out, nil
			},
		}
	}
	return refs, nil
}
