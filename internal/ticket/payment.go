package ticket

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/iliyamo/eventsphere/internal/config"
)

// PaymentResult is the structured answer of a payment gateway.  A
// declined charge is a result with Success=false, not an error; errors
// are reserved for the gateway itself failing.
type PaymentResult struct {
	Success bool
	Message string
}

const (
	paymentOKMessage       = "Payment processed successfully"
	paymentDeclinedMessage = "Payment failed - insufficient funds or card declined"
)

// SimulatedGateway stands in for a card processor: every charge takes a
// random time between MinDelay and MaxDelay and succeeds with probability
// SuccessRate.
type SimulatedGateway struct {
	cfg   config.PaymentConfig
	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSimulatedGateway returns a gateway seeded from the wall clock.
func NewSimulatedGateway(cfg config.PaymentConfig) *SimulatedGateway {
	return &SimulatedGateway{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepCtx,
	}
}

// ProcessPayment simulates a charge.  It returns ctx.Err() if the context
// ends while the charge is in flight.
func (g *SimulatedGateway) ProcessPayment(ctx context.Context) (PaymentResult, error) {
	g.mu.Lock()
	delay := g.cfg.MinDelay
	if span := g.cfg.MaxDelay - g.cfg.MinDelay; span > 0 {
		delay += time.Duration(g.rng.Int63n(int64(span)))
	}
	ok := g.rng.Float64() < g.cfg.SuccessRate
	g.mu.Unlock()

	if err := g.sleep(ctx, delay); err != nil {
		return PaymentResult{}, err
	}
	if ok {
		return PaymentResult{Success: true, Message: paymentOKMessage}, nil
	}
	return PaymentResult{Success: false, Message: paymentDeclinedMessage}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
