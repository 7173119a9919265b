package messaging

import (
	"context"

	"github.com/cryptobuddy/pkg/models"
)

// NopPublisher drops turn events; used when NATS is disabled
type NopPublisher struct{}

func (NopPublisher) PublishTurn(context.Context, models.TurnEvent) error {
	return nil
}
