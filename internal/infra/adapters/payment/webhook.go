package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tutoring-payments/internal/domain/ports/adapter"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on every notification.
const SignatureHeader = "Gateway-Signature"

var (
	ErrMissingSignature = errors.New("missing gateway signature")
	ErrInvalidSignature = errors.New("invalid gateway signature")
	ErrStaleSignature   = errors.New("gateway signature outside tolerance")
	ErrMalformedEvent   = errors.New("malformed gateway event")
)

type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &WebhookVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Verify checks the HMAC-SHA256 of t + "." + body against every v1 entry in
// the header and rejects timestamps outside the tolerance window.
func (v *WebhookVerifier) Verify(header string, body []byte) error {
	if header == "" {
		return ErrMissingSignature
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v1":
			sigs = append(sigs, val)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrMissingSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	age := v.now().Sub(time.Unix(unix, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ErrStaleSignature
	}

	expected := computeSignature(v.secret, ts, body)
	for _, s := range sigs {
		got, err := hex.DecodeString(s)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func computeSignature(secret []byte, ts string, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(ts))
	h.Write([]byte("."))
	h.Write(body)
	return h.Sum(nil)
}

// SignPayload builds a header value for body; the noop gateway and tests use it.
func SignPayload(secret string, at time.Time, body []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + hex.EncodeToString(computeSignature([]byte(secret), ts, body))
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID               string            `json:"id"`
			Metadata         map[string]string `json:"metadata"`
			LatestCharge     string            `json:"latest_charge"`
			LastPaymentError *struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		} `json:"object"`
	} `json:"data"`
}

// ParseNotification decodes a verified body into an adapter.Notification.
func ParseNotification(body []byte) (adapter.Notification, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return adapter.Notification{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.ID == "" || env.Type == "" {
		return adapter.Notification{}, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return adapter.Notification{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	obj := env.Data.Object
	n := adapter.Notification{
		EventID:   env.ID,
		Type:      env.Type,
		IntentID:  obj.ID,
		Metadata:  obj.Metadata,
		Reference: obj.LatestCharge,
		Raw:       raw,
	}
	if obj.LastPaymentError != nil {
		n.FailureMessage = obj.LastPaymentError.Message
	}
	return n, nil
}
