package stub

import (
	"context"
	"sync"

	"momentum-engine/internal/solana"
)

// WSClient implements solana.WSClient for testing. Notifications pushed via
// Notify are delivered to the matching subscription channel.
type WSClient struct {
	mu sync.Mutex

	SubscribeErr error

	subs   map[string]chan solana.AccountNotification
	closed bool
}

// NewWSClient creates an empty stub WebSocket client.
func NewWSClient() *WSClient {
	return &WSClient{
		subs: make(map[string]chan solana.AccountNotification),
	}
}

// SubscribeAccount returns a channel that receives notifications pushed for
// pubkey.
func (c *WSClient) SubscribeAccount(_ context.Context, pubkey string) (<-chan solana.AccountNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}
	ch := make(chan solana.AccountNotification, 64)
	c.subs[pubkey] = ch
	return ch, nil
}

// HasSubscription reports whether a subscription for pubkey exists.
func (c *WSClient) HasSubscription(pubkey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[pubkey]
	return ok
}

// Notify delivers a notification to the subscription for pubkey, if any.
func (c *WSClient) Notify(pubkey string, notif solana.AccountNotification) {
	c.mu.Lock()
	ch, ok := c.subs[pubkey]
	c.mu.Unlock()
	if ok {
		ch <- notif
	}
}

// Close closes all subscription channels.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	return nil
}

var _ solana.WSClient = (*WSClient)(nil)
