package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse         = errors.New("catalog parse error")
	ErrCheckpoint    = errors.New("checkpoint error")
	ErrSubmit        = errors.New("submit error")
	ErrPoll          = errors.New("poll error")
	ErrFetch         = errors.New("fetch error")
	ErrWrite         = errors.New("artifact write error")
	ErrTimeout       = errors.New("timeout")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later outcome classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrSubmit
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error should abort the whole run rather than fail a
// single item. Only catalog, checkpoint, and configuration problems qualify;
// provider and filesystem failures are per-item outcomes.
func Fatal(err error) bool {
	return errors.Is(err, ErrParse) ||
		errors.Is(err, ErrCheckpoint) ||
		errors.Is(err, ErrConfiguration)
}

// FailureReason condenses an item error into the short reason persisted in
// checkpoint and history records.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTimeout) {
		return "timeout"
	}
	return err.Error()
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
