package payment

import (
	"context"
	"fmt"
	"sync"

	"tutoring-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for local runs and tests.
// Intents stay pending until Settle is called.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	intents map[string]adapter.IntentStatus
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		intents: make(map[string]adapter.IntentStatus),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("noop_pi_%d", g.seq)
}

func (g *NoopPaymentGateway) CreateChargeIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (adapter.ChargeIntent, error) {
	if amountMinor <= 0 {
		return adapter.ChargeIntent{}, fmt.Errorf("noop: invalid amount %d", amountMinor)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.intents[id] = adapter.IntentStatusPending
	return adapter.ChargeIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (g *NoopPaymentGateway) RetrieveIntent(ctx context.Context, intentID string) (adapter.IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.intents[intentID]
	if !ok {
		return "", fmt.Errorf("noop: intent %s not found", intentID)
	}
	return st, nil
}

// Settle moves an intent to a final state, as a customer confirming or
// abandoning the charge would.
func (g *NoopPaymentGateway) Settle(intentID string, st adapter.IntentStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.intents[intentID]; !ok {
		return fmt.Errorf("noop: intent %s not found", intentID)
	}
	g.intents[intentID] = st
	return nil
}
