// Package notify delivers fire-and-forget observer notifications carrying
// work item snapshots.
package notify

import (
	"context"
	"log/slog"
)

// EventExperimentUpdated is emitted on every work item transition.
const EventExperimentUpdated = "experiment_updated"

// Notifier pushes an event with a payload to an external observer.
// Delivery is best-effort: callers must treat errors as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]any) error
}

// LogNotifier writes notifications to the structured log. It is the
// default when no push transport is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, event string, payload map[string]any) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "observer notification", "event", event, "payload", payload)
	return nil
}
