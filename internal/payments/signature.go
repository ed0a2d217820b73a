package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on webhook deliveries.
	SignatureHeader  = "Checkout-Signature"
	defaultTolerance = 5 * time.Minute
)

var ErrInvalidSignature = errors.New("invalid webhook signature")
var ErrStaleTimestamp = errors.New("webhook timestamp outside tolerance")

// EventCheckoutCompleted marks a checkout session the provider settled.
const EventCheckoutCompleted = "checkout.session.completed"

// WebhookEvent is the provider's callback body.
type WebhookEvent struct {
	Type            string `json:"type"`
	SessionID       string `json:"sessionId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var event WebhookEvent

	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, err
	}

	if event.Type == "" || event.SessionID == "" {
		return WebhookEvent{}, errors.New("webhook event missing type or sessionId")
	}

	return event, nil
}

// VerifySignature checks the HMAC-SHA256 signature over "<timestamp>.<body>".
// Constant-time comparison; timestamps older than the tolerance are rejected
// to bound replay.
func VerifySignature(header string, body []byte, secret string, now time.Time) error {
	return verifySignature(header, body, secret, now, defaultTolerance)
}

func verifySignature(header string, body []byte, secret string, now time.Time, tolerance time.Duration) error {
	if strings.TrimSpace(secret) == "" {
		return errors.New("webhook secret is empty")
	}

	timestamp, signatures := parseSignatureHeader(header)

	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)

	if err != nil || ts <= 0 {
		return ErrInvalidSignature
	}

	skew := now.UTC().Unix() - ts

	if skew < 0 {
		skew = -skew
	}

	if tolerance > 0 && skew > int64(tolerance.Seconds()) {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sigHex := range signatures {
		decoded, decodeErr := hex.DecodeString(sigHex)

		if decodeErr != nil {
			continue
		}

		if hmac.Equal(expected, decoded) {
			return nil
		}
	}

	return ErrInvalidSignature
}

func parseSignatureHeader(header string) (timestamp string, signatures []string) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")

		if !found {
			continue
		}

		switch key {
		case "t":
			timestamp = value
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}

	return timestamp, signatures
}

// Sign builds a signature header for the given body. Used by tests and by the
// provider simulator in dev.
func Sign(body []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.UTC().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)

	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
