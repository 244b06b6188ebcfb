package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log implements Logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("component", event.Component.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", event.Attempt))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Candidate != nil:
		attrs = append(attrs,
			slog.String("source", event.Candidate.Source),
			slog.String("ssid", event.Candidate.SSID),
			slog.Bool("queued", event.Candidate.Queued),
		)
	case event.Outcome != nil:
		attrs = append(attrs,
			slog.Int("number", event.Outcome.Number),
			slog.String("ssid", event.Outcome.SSID),
			slog.String("outcome", event.Outcome.Outcome),
			slog.Duration("duration", event.Outcome.Duration),
		)
		if event.Outcome.Error != "" {
			attrs = append(attrs, slog.String("error", event.Outcome.Error))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_component", event.Error.Component.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	case event.Status != nil:
		attrs = append(attrs,
			slog.String("status", event.Status.Status),
			slog.Int("attempts", event.Status.Attempts),
		)
		if event.Status.SSID != "" {
			attrs = append(attrs, slog.String("ssid", event.Status.SSID))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "provisioning", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
