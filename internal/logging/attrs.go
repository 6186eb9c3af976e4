package logging

import (
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error records err under "error". A nil error is recorded as "<nil>" so the
// key is always present on failure lines.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with a component. A nil logger yields a
// component-tagged no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// fieldDefault is a key that WARN and ERROR lines must carry.
type fieldDefault struct {
	key   string
	value string
}

// withRequired appends each required field that attrs does not already set.
func withRequired(attrs []Attr, required ...fieldDefault) []any {
	set := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		set[a.Key] = struct{}{}
	}
	args := make([]any, 0, len(attrs)+len(required))
	for _, a := range attrs {
		args = append(args, a)
	}
	for _, f := range required {
		if _, ok := set[f.key]; !ok {
			args = append(args, String(f.key, f.value))
		}
	}
	return args
}

// WarnWithContext logs a warning that always carries event_type, error_hint,
// and impact. Missing fields get generic defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Warn(msg, withRequired(attrs,
		fieldDefault{FieldEventType, eventType},
		fieldDefault{FieldErrorHint, "check logs for details"},
		fieldDefault{FieldImpact, "operation completed with warnings"},
	)...)
}

// ErrorWithContext logs an error that always carries event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, withRequired(attrs,
		fieldDefault{FieldEventType, eventType},
		fieldDefault{FieldErrorHint, "check logs for details"},
	)...)
}
