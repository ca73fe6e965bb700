package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tutoring-payments/internal/domain"
)

// MoneyScale is the number of decimal places every stored amount carries.
const MoneyScale = 2

type PaymentType string

const (
	PaymentTypeSession      PaymentType = "session"
	PaymentTypeSubscription PaymentType = "subscription"
	PaymentTypeResource     PaymentType = "resource"
	PaymentTypeVideo        PaymentType = "video"
	PaymentTypePackage      PaymentType = "package"
	PaymentTypeWalletTopUp  PaymentType = "wallet_topup"
)

// ParsePaymentType rejects anything outside the closed set of purchase kinds.
func ParsePaymentType(s string) (PaymentType, error) {
	switch t := PaymentType(s); t {
	case PaymentTypeSession, PaymentTypeSubscription, PaymentTypeResource,
		PaymentTypeVideo, PaymentTypePackage, PaymentTypeWalletTopUp:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown payment type %q", domain.ErrInvalidArgument, s)
	}
}

type PaymentMethod string

const (
	PaymentMethodStripe          PaymentMethod = "stripe"
	PaymentMethodPaystack        PaymentMethod = "paystack"
	PaymentMethodMTNMoMo         PaymentMethod = "mtn_momo"
	PaymentMethodVodafoneCash    PaymentMethod = "vodafone_cash"
	PaymentMethodAirtelTigoMoney PaymentMethod = "airteltigo_money"
	PaymentMethodWallet          PaymentMethod = "wallet"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentMethodStripe, PaymentMethodPaystack, PaymentMethodMTNMoMo,
		PaymentMethodVodafoneCash, PaymentMethodAirtelTigoMoney, PaymentMethodWallet:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown payment method %q", domain.ErrInvalidArgument, s)
	}
}

// Funding tells how a method moves money: synchronously from the wallet, or
// through an external gateway that reports back asynchronously.
type Funding int

const (
	FundingGateway Funding = iota
	FundingWallet
)

func (m PaymentMethod) Funding() Funding {
	switch m {
	case PaymentMethodWallet:
		return FundingWallet
	case PaymentMethodStripe, PaymentMethodPaystack, PaymentMethodMTNMoMo,
		PaymentMethodVodafoneCash, PaymentMethodAirtelTigoMoney:
		return FundingGateway
	}
	panic(fmt.Sprintf("unhandled payment method %q", string(m)))
}

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing" // charge intent created at the gateway
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted:  {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
}

// CanTransitionTo reports whether the payment state machine allows s -> next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for states a gateway notification can no longer move.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing:
		return false
	default:
		return true
	}
}

// Payment records one monetary transaction attempt and its outcome.
type Payment struct {
	ID       string
	UserID   string
	Type     PaymentType
	Amount   decimal.Decimal
	Currency string
	Method   PaymentMethod
	Status   PaymentStatus

	// Purchased entity links; at most one is set.
	SessionID  *string
	ResourceID *string
	VideoID    *string

	GatewayIntentID  string         // correlation id returned by CreateChargeIntent
	GatewayReference string         // provider transaction reference after completion
	GatewayResponse  map[string]any // raw notification payload or failure detail
	Description      string
	Metadata         map[string]any

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ValidateAmount enforces amount > 0 with at most MoneyScale decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", domain.ErrInvalidAmount, amount.String(), MoneyScale)
	}
	return nil
}

// NewPayment validates and builds a pending payment.
func NewPayment(userID string, typ PaymentType, amount decimal.Decimal, currency string, method PaymentMethod, description string) (*Payment, error) {
	if userID == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if typ == PaymentTypeWalletTopUp && method.Funding() == FundingWallet {
		return nil, fmt.Errorf("%w: wallet top-up cannot be paid from the wallet", domain.ErrInvalidArgument)
	}
	now := time.Now()
	return &Payment{
		ID:          domain.NewUUID(),
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Currency:    currency,
		Method:      method,
		Status:      PaymentStatusPending,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// MinorUnits converts the amount to the integer unit gateways expect (pesewas, cents).
func (p *Payment) MinorUnits() int64 {
	return p.Amount.Shift(MoneyScale).Round(0).IntPart()
}

// CheckLinks requires exactly the entity link the payment type needs and no other.
func (p *Payment) CheckLinks() error {
	want := map[PaymentType]string{
		PaymentTypeSession:  "session_id",
		PaymentTypeResource: "resource_id",
		PaymentTypeVideo:    "video_id",
	}[p.Type]
	set := map[string]bool{
		"session_id":  p.SessionID != nil && *p.SessionID != "",
		"resource_id": p.ResourceID != nil && *p.ResourceID != "",
		"video_id":    p.VideoID != nil && *p.VideoID != "",
	}
	for link, ok := range set {
		if ok && link != want {
			return fmt.Errorf("%w: %s payment cannot carry %s", domain.ErrInvalidArgument, p.Type, link)
		}
	}
	if want != "" && !set[want] {
		return fmt.Errorf("%w: %s payment requires %s", domain.ErrInvalidArgument, p.Type, want)
	}
	return nil
}

// MetaString reads a string metadata value; JSON round trips keep strings as strings.
func (p *Payment) MetaString(key string) string {
	if p.Metadata == nil {
		return ""
	}
	if v, ok := p.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaInt reads an integer metadata value, tolerating the float64 that JSON decoding produces.
func (p *Payment) MetaInt(key string) (int, bool) {
	if p.Metadata == nil {
		return 0, false
	}
	switch v := p.Metadata[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
