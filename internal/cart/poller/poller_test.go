package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeseias/djezyas/internal/cart/cache"
	"github.com/jeseias/djezyas/internal/cart/domain"
	"github.com/jeseias/djezyas/internal/cart/repository"
	"github.com/jeseias/djezyas/internal/order/publisher"
)

type fakeReader struct {
	m        sync.Mutex
	messages []kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if len(r.messages) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

type memCartRepo struct {
	m     sync.Mutex
	carts map[string]*domain.Cart
}

func (r *memCartRepo) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	r.m.Lock()
	defer r.m.Unlock()
	cart, ok := r.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cart, nil
}

func (r *memCartRepo) UpsertCart(_ context.Context, cart *domain.Cart) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.carts[cart.UserID] = cart
	return nil
}

func (r *memCartRepo) ClearCart(_ context.Context, userID string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(r.carts, userID)
	return nil
}

type memCache struct {
	m     sync.Mutex
	carts map[string]*domain.Cart
}

func (c *memCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	c.m.Lock()
	defer c.m.Unlock()
	cart, ok := c.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (c *memCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.carts[userID] = cart
	return nil
}

func (c *memCache) Delete(_ context.Context, userID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.carts, userID)
	return nil
}

func TestPollerClearsCartOnOrdersCreated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cart := domain.NewCart("user-1")
	cart.AddItem("prod-1", 2)

	repo := &memCartRepo{carts: map[string]*domain.Cart{"user-1": cart}}
	cartCache := &memCache{carts: map[string]*domain.Cart{"user-1": cart}}

	event := publisher.OrdersCreatedEvent{
		UserID:    "user-1",
		OrderIDs:  []string{"order-1"},
		CreatedAt: time.Now(),
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	p := &Poller{
		repo:   repo,
		cache:  cartCache,
		reader: &fakeReader{messages: []kafka.Message{{Key: []byte("user-1"), Value: value}}},
		log:    zap.NewNop(),
	}
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		_, err := repo.GetCart(ctx, "user-1")
		return errors.Is(err, repository.ErrCartNotFound)
	}, 2*time.Second, 10*time.Millisecond, "cart should be cleared")

	require.Eventually(t, func() bool {
		_, err := cartCache.Get(ctx, "user-1")
		return errors.Is(err, cache.ErrCacheMiss)
	}, 2*time.Second, 10*time.Millisecond, "cache should be cleared")
}

func TestPollerIgnoresMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cart := domain.NewCart("user-1")
	repo := &memCartRepo{carts: map[string]*domain.Cart{"user-1": cart}}
	cartCache := &memCache{carts: map[string]*domain.Cart{}}

	p := &Poller{
		repo:  repo,
		cache: cartCache,
		reader: &fakeReader{messages: []kafka.Message{
			{Value: []byte("not json")},
			{Value: []byte(`{"order_ids":["order-1"]}`)},
		}},
		log: zap.NewNop(),
	}

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	_, err := repo.GetCart(ctx, "user-1")
	assert.NoError(t, err, "cart must survive malformed events")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on context cancellation")
	}
}

func TestPollerStopsOnReaderEOF(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Poller{
		repo:   &memCartRepo{carts: map[string]*domain.Cart{}},
		cache:  &memCache{carts: map[string]*domain.Cart{}},
		reader: &fakeReader{},
		log:    zap.NewNop(),
	}

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not return on cancelled context")
	}

	assert.NoError(t, p.reader.Close())
}
