package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeseias/djezyas/internal/payment/repository"
)

// Expirer periodically sweeps pending payment intents past their deadline
// and marks them EXPIRED. Expiry never cascades to orders; order expiry is
// an explicit operation on its own.
type Expirer struct {
	intents  repository.PaymentIntentRepository
	interval time.Duration
	log      *zap.Logger
}

func NewExpirer(intents repository.PaymentIntentRepository, interval time.Duration, log *zap.Logger) *Expirer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Expirer{intents: intents, interval: interval, log: log}
}

func (e *Expirer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("payment intent expirer stopped")
			return
		case <-ticker.C:
			n, err := e.Sweep(ctx)
			if err != nil {
				e.log.Error("payment intent sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				e.log.Info("expired stale payment intents", zap.Int("count", n))
			}
		}
	}
}

// Sweep expires every pending intent whose deadline passed and returns how
// many were flipped.
func (e *Expirer) Sweep(ctx context.Context) (int, error) {
	intents, err := e.intents.ListExpiredBefore(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, intent := range intents {
		intent.MarkExpired()
		if err := e.intents.Update(ctx, intent); err != nil {
			e.log.Error("failed to expire payment intent",
				zap.Error(err),
				zap.String("payment_intent_id", intent.ID.String()))
			continue
		}
		expired++
	}
	return expired, nil
}
