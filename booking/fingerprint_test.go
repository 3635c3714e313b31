package booking

import (
	"testing"
	"time"

	"github.com/arunvm123/reservationengine/model"
	"github.com/stretchr/testify/assert"
)

func sampleRequest() model.ConfirmRequest {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return model.ConfirmRequest{
		Tenant:     "tenant-1",
		CustomerID: "cust-1",
		ServiceID:  "svc-1",
		TotalMinor: 5000,
		Items: []model.BookingItemRequest{
			{ResourceID: "res-a", Start: start, End: start.Add(time.Hour), Capacity: 1},
			{ResourceID: "res-b", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour), Capacity: 2},
		},
	}
}

func TestFingerprintStableAcrossItemOrder(t *testing.T) {
	req := sampleRequest()
	reordered := sampleRequest()
	reordered.Items[0], reordered.Items[1] = reordered.Items[1], reordered.Items[0]

	assert.Equal(t, Fingerprint(req), Fingerprint(reordered))
}

func TestFingerprintChangesWithPayload(t *testing.T) {
	req := sampleRequest()
	other := sampleRequest()
	other.TotalMinor = 9999

	assert.NotEqual(t, Fingerprint(req), Fingerprint(other))
}

func TestEncodeDecodeJSONMapRoundTrip(t *testing.T) {
	resp := model.ConfirmResponse{BookingID: "b-1", Status: model.BookingStatusConfirmed, TotalMinor: 1200}
	encoded := encodeJSONMap(resp)

	var decoded model.ConfirmResponse
	err := decodeJSONMap(encoded, &decoded)

	assert.NoError(t, err)
	assert.Equal(t, resp, decoded)
}
