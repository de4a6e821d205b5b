package notification

import (
	"context"
	"log/slog"

	"github.com/ederziomek/real-digital-token/internal/reserve"
)

// LoggerNotifier writes committed reserve events to the structured logger.
// It is the publisher used when no broker is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

var _ reserve.Publisher = (*LoggerNotifier)(nil)

// NewLoggerNotifier constructs a logging publisher.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Publish writes the event to the structured logger.
func (n *LoggerNotifier) Publish(_ context.Context, event reserve.Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("reserve event",
		slog.String("kind", string(event.Kind)),
		slog.String("entry_id", event.Entry.ID),
		slog.String("reserve", event.Reserve.Address),
		slog.Uint64("total_supply", event.Reserve.TotalSupply),
	)
	return nil
}

// Fanout delivers an event to every publisher and returns the first error.
type Fanout []reserve.Publisher

// Publish implements reserve.Publisher.
func (f Fanout) Publish(ctx context.Context, event reserve.Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
