package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	ing := NewIngress("shh", nil, nil, nil, nil)
	body := []byte(`{"provider":"stripe","providerEventId":"evt_1","type":"payment.succeeded"}`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	header := sign("shh", now.Unix(), body)

	err := ing.Verify(header, body, now)

	assert.NoError(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	ing := NewIngress("shh", nil, nil, nil, nil)
	body := []byte(`{"provider":"stripe"}`)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	header := sign("wrong-secret", now.Unix(), body)

	err := ing.Verify(header, body, now)

	assert.Error(t, err)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	ing := NewIngress("shh", nil, nil, nil, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	header := sign("shh", now.Unix(), []byte(`{"a":1}`))

	err := ing.Verify(header, []byte(`{"a":2}`), now)

	assert.Error(t, err)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	ing := NewIngress("shh", nil, nil, nil, nil)
	body := []byte(`{"a":1}`)
	signedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	header := sign("shh", signedAt.Unix(), body)

	err := ing.Verify(header, body, signedAt.Add(10*time.Minute))

	assert.Error(t, err)
}

func TestVerifyRejectsMalformedHeader(t *testing.T) {
	ing := NewIngress("shh", nil, nil, nil, nil)

	err := ing.Verify("not-a-valid-header", []byte(`{}`), time.Now())

	assert.Error(t, err)
}
