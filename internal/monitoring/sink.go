package monitoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"bindery/internal/logging"
)

// Event is a debounced change under a monitored library root.
type Event struct {
	LibraryID int64
	Root      string
	Path      string
	Op        fsnotify.Op
	At        time.Time
}

// EventSink receives debounced events.
type EventSink interface {
	HandleEvent(ctx context.Context, event Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, event Event)

// HandleEvent calls f.
func (f SinkFunc) HandleEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// LogSink logs every event at info level.
type LogSink struct {
	Logger *slog.Logger
}

// HandleEvent logs the event.
func (s LogSink) HandleEvent(ctx context.Context, event Event) {
	logger := logging.WithContext(ctx, s.Logger)
	logger.Info("library change detected",
		logging.Int64(logging.FieldLibraryID, event.LibraryID),
		logging.String("path", event.Path),
		logging.String("op", event.Op.String()),
		logging.String(logging.FieldEventType, "library_change"),
	)
}
