package redis

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/georoute/internal/domain"
)

// Subscription delivers field change notifications.
type Subscription struct {
	C     <-chan domain.Field
	close func() error
}

// Close stops the subscription; C is closed afterwards.
func (s *Subscription) Close() error {
	return s.close()
}

// Subscribe listens on ChannelChanges. Unknown payloads are dropped.
func (s *Store) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := s.client.Subscribe(ctx, ChannelChanges)
	// wait for the subscription confirmation so no notification published
	// after Subscribe returns can be missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	out := make(chan domain.Field, 16)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for msg := range msgs {
			f := domain.Field(msg.Payload)
			if !f.IsKnown() {
				continue
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Subscription{C: out, close: ps.Close}, nil
}
