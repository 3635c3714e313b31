package booking

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/arunvm123/reservationengine/model"
)

// Fingerprint computes SHA-256(canonicalJSON(request)) per §4.E, using
// Go's encoding/json map-key sorting (maps always marshal with sorted
// keys) plus an explicit field order for the request struct itself so the
// same logical request always hashes identically regardless of how its
// slice of items was built.
func Fingerprint(req model.ConfirmRequest) string {
	canonical := struct {
		Tenant     string                      `json:"tenant"`
		CustomerID string                      `json:"customerId"`
		ServiceID  string                      `json:"serviceId"`
		Items      []model.BookingItemRequest `json:"items"`
		TotalMinor int64                       `json:"totalMinor"`
	}{
		Tenant:     req.Tenant,
		CustomerID: req.CustomerID,
		ServiceID:  req.ServiceID,
		Items:      sortedItems(req.Items),
		TotalMinor: req.TotalMinor,
	}
	b, err := json.Marshal(canonical)
	if err != nil {
		// Marshal of a plain struct of strings/ints/times cannot fail.
		panic(fmt.Sprintf("fingerprint: unexpected marshal error: %v", err))
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

func sortedItems(items []model.BookingItemRequest) []model.BookingItemRequest {
	out := make([]model.BookingItemRequest, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResourceID != out[j].ResourceID {
			return out[i].ResourceID < out[j].ResourceID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func encodeJSONMap(v any) model.JSONMap {
	b, err := json.Marshal(v)
	if err != nil {
		return model.JSONMap{}
	}
	var m model.JSONMap
	if err := json.Unmarshal(b, &m); err != nil {
		return model.JSONMap{}
	}
	return m
}

func decodeJSONMap(m model.JSONMap, out any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
