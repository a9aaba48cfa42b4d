package logging

import (
	"log/slog"
	"time"
)

type Attr = slog.Attr

const (
	FieldItem     = "item_id"
	FieldSection  = "section"
	FieldProvider = "provider"
	FieldRun      = "run_id"
	FieldPath     = "path"
	FieldReason   = "reason"
)

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts typed attrs into the variadic form slog methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}
