package messaging

import (
	"context"

	"github.com/feral-file/ff-settlement/internal/domain"
)

// Publisher defines the interface for publishing settlement events to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishSettlementEvent publishes a settlement outcome
	PublishSettlementEvent(ctx context.Context, event *domain.SettlementEvent) error
	// Close closes the connection
	Close()
}
