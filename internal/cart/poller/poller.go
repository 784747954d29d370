// Package poller consumes order-creation events and clears the originating
// cart. Cart cleanup is asynchronous: the order flow never blocks on it.
package poller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jeseias/djezyas/internal/cart/cache"
	"github.com/jeseias/djezyas/internal/cart/repository"
	"github.com/jeseias/djezyas/internal/order/publisher"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Poller struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	reader messageReader
	log    *zap.Logger
}

func NewPoller(repo repository.CartRepository, cartCache cache.CartCache, log *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.TopicOrdersCreated,
		GroupID:  "cart-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{repo: repo, cache: cartCache, reader: reader, log: log}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.consumeAndClearCart(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing reader", zap.Error(err))
	}
}

func (p *Poller) consumeAndClearCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error("error reading message", zap.Error(err))
		}
		return
	}

	var event publisher.OrdersCreatedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.Error("error parsing message", zap.Error(err))
		return
	}
	if event.UserID == "" {
		p.log.Warn("orders.created event without user id")
		return
	}

	if err := p.repo.ClearCart(ctx, event.UserID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		p.log.Error("failed to clear cart", zap.Error(err), zap.String("user_id", event.UserID))
	}

	if err := p.cache.Delete(ctx, event.UserID); err != nil {
		p.log.Error("failed to clear cart cache", zap.Error(err), zap.String("user_id", event.UserID))
	}
}
