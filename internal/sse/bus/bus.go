package bus

import (
	"context"

	"github.com/tempero-labs/dispenser-backend/internal/sse"
)

// Bus fans execution events out across backend instances. Single-instance
// deployments use the local bus, which delivers straight back to the hub.
type Bus interface {
	Publish(ctx context.Context, msg sse.Message) error
	StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error
	Close() error
}

type localBus struct {
	onMsg func(m sse.Message)
}

func NewLocalBus() Bus {
	return &localBus{}
}

func (b *localBus) Publish(ctx context.Context, msg sse.Message) error {
	if b.onMsg != nil {
		b.onMsg(msg)
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error {
	b.onMsg = onMsg
	return nil
}

func (b *localBus) Close() error { return nil }
