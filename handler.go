package main

import (
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/arunvm123/reservationengine/booking"
	"github.com/arunvm123/reservationengine/cache"
	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/model"
	"github.com/arunvm123/reservationengine/policy"
	"github.com/arunvm123/reservationengine/repository"
	"github.com/arunvm123/reservationengine/webhook"
	"github.com/gin-gonic/gin"
)

// BookingHandler wires the public availability read, the administrative
// confirm/cancel API, the webhook ingress, and the health check against
// the booking coordinator, grounded on the teacher's BookingHandler
// (repo/cache/kafkaWriter/eventService held as fields, one method per
// route), generalized from a Kafka-async submit-then-poll flow to a
// synchronous confirm/cancel call.
type BookingHandler struct {
	inventory repository.InventoryStore
	resolver  *booking.ReferenceResolver
	validator *policy.Validator
	coord     *booking.Coordinator
	ingress   *webhook.Ingress
	cache     *cache.Tiered
	cacheTTL  time.Duration
	gw        repository.Gateway
	clock     clock.Clock
}

func NewBookingHandler(
	inventory repository.InventoryStore,
	resolver *booking.ReferenceResolver,
	validator *policy.Validator,
	coord *booking.Coordinator,
	ingress *webhook.Ingress,
	tiered *cache.Tiered,
	cacheTTL time.Duration,
	gw repository.Gateway,
	c clock.Clock,
) *BookingHandler {
	return &BookingHandler{
		inventory: inventory, resolver: resolver, validator: validator, coord: coord,
		ingress: ingress, cache: tiered, cacheTTL: cacheTTL, gw: gw, clock: c,
	}
}

const maxAvailabilityWindow = 90 * 24 * time.Hour

// GetAvailability serves GET /v1/public/availability per the bit-exact §6
// contract: ETag/If-None-Match conditional read, Cache-Control, 90-day
// window cap, and 400 on a malformed or inverted range.
func (h *BookingHandler) GetAvailability(c *gin.Context) {
	q := model.AvailabilityQuery{
		TenantID:   c.Query("tenant_id"),
		ServiceID:  c.Query("service_id"),
		ResourceID: c.Query("resource_id"),
	}
	if q.TenantID == "" || q.ServiceID == "" {
		writeAppError(c, model.NewAppError(model.ErrValidation, "tenant_id and service_id are required"))
		return
	}

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		writeAppError(c, model.NewAppError(model.ErrValidation, "from must be an RFC3339 timestamp"))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		writeAppError(c, model.NewAppError(model.ErrValidation, "to must be an RFC3339 timestamp"))
		return
	}
	if !from.Before(to) {
		writeAppError(c, model.NewAppError(model.ErrValidation, "from must be before to"))
		return
	}
	if to.Sub(from) > maxAvailabilityWindow {
		writeAppError(c, model.NewAppError(model.ErrValidation, "requested window exceeds the 90 day cap"))
		return
	}
	q.From, q.To = from, to

	if g := c.Query("granularity_min"); g != "" {
		minutes, err := strconv.Atoi(g)
		if err != nil || minutes <= 0 {
			writeAppError(c, model.NewAppError(model.ErrValidation, "granularity_min must be a positive integer"))
			return
		}
		q.Granularity = minutes
	}

	rows, err := h.inventory.AvailableSlots(c.Request.Context(), q)
	if err != nil {
		writeAppError(c, model.WrapAppError(model.ErrInternal, "failed to load availability", err))
		return
	}

	var lastModified time.Time
	for _, r := range rows {
		if r.UpdatedAt.After(lastModified) {
			lastModified = r.UpdatedAt
		}
	}
	etag := fmt.Sprintf(`W/"%x"`, md5.Sum([]byte(fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		q.TenantID, q.ServiceID, q.From.Format(time.RFC3339), q.To.Format(time.RFC3339), q.ResourceID, lastModified.UnixNano()))))

	c.Header("Cache-Control", "private, max-age=15")
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	slots := make([]model.AvailabilitySlot, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, model.AvailabilitySlot{
			TimeslotID:        r.TimeslotID,
			TenantID:          r.TenantID,
			ServiceID:         r.ServiceID,
			ResourceID:        r.ResourceID,
			StartAt:           r.Start,
			EndAt:             r.End,
			AvailableCapacity: r.AvailableCapacity,
		})
	}
	c.JSON(http.StatusOK, slots)
}

// CreateBooking serves the administrative confirm API, resolving an
// Idempotency-Key from the header or, when absent, auto-generating one
// from the canonical request payload via booking.Fingerprint.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	tenant := c.GetString("tenant_id")
	var body model.CreateBookingAPIRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAppError(c, model.NewAppError(model.ErrValidation, err.Error()))
		return
	}

	items := make([]model.BookingItemRequest, 0, len(body.Items))
	for _, it := range body.Items {
		items = append(items, model.BookingItemRequest{
			ResourceID: it.ResourceID, Start: it.Start, End: it.End, Capacity: it.Capacity,
		})
	}

	refs, err := h.resolver.Resolve(c.Request.Context(), tenant, body.ServiceID, body.CustomerID, items)
	if err != nil {
		writeAppError(c, err)
		return
	}

	var totalMinor int64
	if len(refs) > 0 && refs[0].Service != nil {
		totalMinor = refs[0].Service.PriceMinor * int64(len(items))
	}

	req := model.ConfirmRequest{
		Tenant:          tenant,
		CustomerID:      body.CustomerID,
		ServiceID:       body.ServiceID,
		Items:           items,
		TotalMinor:      totalMinor,
		RequireAllSlots: body.RequireAllSlots,
	}

	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		key = booking.Fingerprint(req)
	}
	req.IdempotencyKey = key

	resp, err := h.coord.Confirm(c.Request.Context(), req, refs)
	if err != nil {
		writeAppError(c, err)
		return
	}

	for _, it := range items {
		if err := h.cache.InvalidateTag(c.Request.Context(), "resource:"+it.ResourceID); err != nil {
			// A stale cache page for this resource falls back to its
			// own short TTL; a failed invalidation is not fatal to the
			// write that just succeeded.
			continue
		}
	}

	c.JSON(http.StatusCreated, model.BookingAPIResponse{
		BookingID:  resp.BookingID,
		Status:     resp.Status,
		TotalMinor: resp.TotalMinor,
		ExpiresAt:  resp.ExpiresAt,
	})
}

// CancelBooking serves the administrative cancel API.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	tenant := c.GetString("tenant_id")
	bookingID := c.Param("bookingId")

	var body model.CancelAPIRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeAppError(c, model.NewAppError(model.ErrValidation, err.Error()))
		return
	}

	resp, err := h.coord.Cancel(c.Request.Context(), model.CancelRequest{
		Tenant:      tenant,
		BookingID:   bookingID,
		Reason:      body.Reason,
		RequestedAt: h.clock.Now(),
	})
	if err != nil {
		writeAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Webhook serves the inbound provider callback endpoint, verifying the
// X-Signature header before handing the raw body to webhook.Ingress.
func (h *BookingHandler) Webhook(c *gin.Context) {
	provider := c.Param("provider")
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeAppError(c, model.NewAppError(model.ErrValidation, "failed to read request body"))
		return
	}

	receipt, err := h.ingress.Handle(c.Request.Context(), provider, c.GetHeader("X-Signature"), body)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// HealthCheck mirrors the teacher's health endpoint shape, verifying the
// database connection is reachable.
func (h *BookingHandler) HealthCheck(c *gin.Context) {
	status := "healthy"
	httpStatus := http.StatusOK
	if err := h.gw.DB().WithContext(c.Request.Context()).Exec("SELECT 1").Error; err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, model.HealthResponse{
		Status:    status,
		Service:   "reservation-engine",
		Timestamp: h.clock.Now(),
	})
}
