package worker

import (
	"context"

	"github.com/okian/postflow/pkg/logger"
)

// LogPublisher writes events to the log. It is the sink when no broker is configured.
type LogPublisher struct {
	log logger.Logger
}

// NewLogPublisher creates a LogPublisher. A nil logger discards events.
func NewLogPublisher(l logger.Logger) *LogPublisher {
	if l == nil {
		l = logger.NewNop()
	}
	return &LogPublisher{log: l}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: matches the Publisher interface
	p.log.Info(ctx, "post published",
		logger.String("post_id", e.PostID),
		logger.String("author_id", e.AuthorID),
		logger.String("status", string(e.Status)),
		logger.Int("assets", len(e.AssetURLs)),
		logger.Any("tags", e.Tags),
	)
	return nil
}
