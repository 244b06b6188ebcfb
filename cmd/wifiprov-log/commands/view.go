// Package commands implements the wifiprov-log CLI commands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/log"
)

// FilterFlags are the filter criteria shared by view, export and filter.
type FilterFlags struct {
	SessionID string
	Component string
	Category  string
	SSID      string
	TimeStart string
	TimeEnd   string
}

// Build converts the flags to a log.Filter.
func (f FilterFlags) Build() (log.Filter, error) {
	filter := log.Filter{
		SessionID: f.SessionID,
		SSID:      f.SSID,
	}

	if f.Component != "" {
		c, err := ParseComponentFlag(f.Component)
		if err != nil {
			return filter, err
		}
		filter.Component = &c
	}
	if f.Category != "" {
		c, err := ParseCategoryFlag(f.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if f.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, f.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if f.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, f.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	return filter, nil
}

// ParseComponentFlag parses a component name (case-insensitive).
func ParseComponentFlag(s string) (log.Component, error) {
	switch strings.ToLower(s) {
	case "supervisor":
		return log.ComponentSupervisor, nil
	case "radio":
		return log.ComponentRadio, nil
	case "intake":
		return log.ComponentIntake, nil
	case "verifier":
		return log.ComponentVerifier, nil
	case "store":
		return log.ComponentStore, nil
	default:
		return 0, fmt.Errorf("invalid component: %s (must be supervisor, radio, intake, verifier or store)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "state":
		return log.CategoryState, nil
	case "candidate":
		return log.CategoryCandidate, nil
	case "attempt":
		return log.CategoryAttempt, nil
	case "error":
		return log.CategoryError, nil
	case "status":
		return log.CategoryStatus, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be state, candidate, attempt, error or status)", s)
	}
}

// RunView prints matching events in human-readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewTraceReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes one event followed by a blank line.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	fmt.Fprintf(w, "%s [session:%s] %-10s %s\n",
		ts, shortID(event.SessionID), event.Component, event.Category)

	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s: %s -> %s\n", sc.Entity, sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  %s: -> %s\n", sc.Entity, sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Candidate != nil:
		c := event.Candidate
		fmt.Fprintf(w, "  SSID: %s  Source: %s", c.SSID, c.Source)
		if c.Queued {
			fmt.Fprint(w, "  (queued)")
		}
		fmt.Fprintln(w)
	case event.Outcome != nil:
		o := event.Outcome
		fmt.Fprintf(w, "  Attempt %d: %s via %s -> %s in %s\n",
			o.Number, o.SSID, o.Source, o.Outcome, formatDuration(o.Duration))
		if o.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", o.Error)
		}
	case event.Error != nil:
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	case event.Status != nil:
		fmt.Fprintf(w, "  %s\n", event.Status.Line)
	}
	fmt.Fprintln(w)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
