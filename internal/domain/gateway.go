package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GatewayLinkGenerated   = "link_generated"
	GatewayPaymentVerified = "payment_verified"
	GatewayPaymentFailed   = "payment_failed"
)

var ErrUnknownGatewayEvent = errors.New("unknown gateway event type")

// GatewayEvent is one of LinkGenerated, PaymentVerified or PaymentFailed.
type GatewayEvent interface {
	EventType() string
	Student() string
}

type LinkGenerated struct {
	StudentID string          `json:"student_id"`
	LinkID    string          `json:"link_id"`
	URL       string          `json:"url"`
	Amount    decimal.Decimal `json:"amount"`
	ItemIDs   []string        `json:"item_ids"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Phone     string          `json:"phone,omitempty"`
}

type PaymentVerified struct {
	StudentID     string          `json:"student_id"`
	GatewayRef    string          `json:"gateway_ref"`
	ReceiptNumber string          `json:"receipt_number"`
	Amount        decimal.Decimal `json:"amount"`
	VerifiedAt    time.Time       `json:"verified_at"`
}

type PaymentFailed struct {
	StudentID  string `json:"student_id"`
	GatewayRef string `json:"gateway_ref"`
	Reason     string `json:"reason"`
}

func (LinkGenerated) EventType() string   { return GatewayLinkGenerated }
func (PaymentVerified) EventType() string { return GatewayPaymentVerified }
func (PaymentFailed) EventType() string   { return GatewayPaymentFailed }

func (e LinkGenerated) Student() string   { return e.StudentID }
func (e PaymentVerified) Student() string { return e.StudentID }
func (e PaymentFailed) Student() string   { return e.StudentID }

type gatewayEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeGatewayEvent decodes a {"type": ..., "data": ...} envelope into its variant.
func DecodeGatewayEvent(raw []byte) (GatewayEvent, error) {
	var env gatewayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode gateway envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, errors.New("gateway event has no data")
	}

	var (
		ev  GatewayEvent
		err error
	)
	switch env.Type {
	case GatewayLinkGenerated:
		var e LinkGenerated
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case GatewayPaymentVerified:
		var e PaymentVerified
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case GatewayPaymentFailed:
		var e PaymentFailed
		err = json.Unmarshal(env.Data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGatewayEvent, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	if ev.Student() == "" {
		return nil, fmt.Errorf("%s: student_id is required", env.Type)
	}
	return ev, nil
}
