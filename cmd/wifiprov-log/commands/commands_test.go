package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.plog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func sampleEvents() []log.Event {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []log.Event{
		{
			Timestamp: ts, SessionID: "sess-aaaa-1111", Component: log.ComponentSupervisor, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "IDLE", NewState: "HOSTING_AP"},
		},
		{
			Timestamp: ts.Add(time.Second), SessionID: "sess-aaaa-1111", Component: log.ComponentIntake, Category: log.CategoryCandidate,
			Candidate: &log.CandidateEvent{Source: "web", SSID: "HomeNet"},
		},
		{
			Timestamp: ts.Add(5 * time.Second), SessionID: "sess-aaaa-1111", Component: log.ComponentSupervisor, Category: log.CategoryAttempt, Attempt: 1,
			Outcome: &log.AttemptEvent{Number: 1, SSID: "HomeNet", Source: "web", Outcome: "VERIFY_FAILED", Error: "no lease", Duration: 4 * time.Second},
		},
		{
			Timestamp: ts.Add(6 * time.Second), SessionID: "sess-aaaa-1111", Component: log.ComponentVerifier, Category: log.CategoryError,
			Error: &log.ErrorEventData{Component: log.ComponentVerifier, Message: "no lease", Context: "verify"},
		},
		{
			Timestamp: ts.Add(10 * time.Second), SessionID: "sess-aaaa-1111", Component: log.ComponentSupervisor, Category: log.CategoryAttempt, Attempt: 1,
			Outcome: &log.AttemptEvent{Number: 2, SSID: "HomeNet", Source: "web", Outcome: "CONNECTED", Duration: 3 * time.Second},
		},
		{
			Timestamp: ts.Add(11 * time.Second), SessionID: "sess-aaaa-1111", Component: log.ComponentSupervisor, Category: log.CategoryStatus,
			Status: &log.StatusEvent{Status: "CONNECTED", SSID: "HomeNet", Attempts: 2, Line: `WIFIPROV_STATUS=CONNECTED session=sess-aaaa-1111 ssid="HomeNet" source=web attempts=2`},
		},
		{
			Timestamp: ts.Add(time.Minute), SessionID: "sess-bbbb-2222", Component: log.ComponentRadio, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityRadio, NewState: "AP"},
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"[session:sess-aaa]",
		"SESSION: IDLE -> HOSTING_AP",
		"SSID: HomeNet  Source: web",
		"Attempt 1: HomeNet via web -> VERIFY_FAILED in 4.000s",
		"Error: no lease",
		"Context: verify",
		"WIFIPROV_STATUS=CONNECTED",
		"RADIO: -> AP",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestViewFiltersByCategory(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	flags := FilterFlags{Category: "attempt"}
	filter, err := flags.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	var buf bytes.Buffer
	if err := RunView(path, filter, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	if strings.Contains(output, "HOSTING_AP") {
		t.Error("state event should be filtered out")
	}
	if got := strings.Count(output, "Attempt "); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestFilterFlagsBuild(t *testing.T) {
	flags := FilterFlags{
		SessionID: "sess-bbbb-2222",
		Component: "Radio",
		TimeStart: "2026-03-01T10:00:30Z",
	}
	filter, err := flags.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if filter.Component == nil || *filter.Component != log.ComponentRadio {
		t.Errorf("expected RADIO component, got %v", filter.Component)
	}
	if filter.TimeStart == nil {
		t.Fatal("expected TimeStart")
	}

	for _, bad := range []FilterFlags{
		{Component: "kernel"},
		{Category: "frame"},
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
	} {
		if _, err := bad.Build(); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}

func TestStatsSummarizesSessions(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 7",
		"ATTEMPT:",
		"CONNECTED:",
		"VERIFY_FAILED:",
		"Sessions: 2",
		"[sess-aaa] 6 events, 2 attempts",
		"Result: CONNECTED (HomeNet)",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, log.Filter{SSID: "HomeNet"}, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first["SessionID"] != "sess-aaaa-1111" {
		t.Errorf("unexpected session: %v", first["SessionID"])
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, log.Filter{}, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("expected header and 7 rows, got %d", len(rows))
	}
	if rows[0][0] != "timestamp" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][6] != "IDLE->HOSTING_AP" {
		t.Errorf("unexpected state detail: %q", rows[1][6])
	}
	if rows[3][6] != "VERIFY_FAILED" || rows[3][5] != "HomeNet" {
		t.Errorf("unexpected attempt row: %v", rows[3])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	if err := RunExport(path, log.Filter{}, "xml", ""); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFilterWritesMatchingEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "filtered.plog")

	n, err := RunFilter(path, log.Filter{SessionID: "sess-bbbb-2222"}, out)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 event, got %d", n)
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	event, err := reader.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if event.StateChange == nil || event.StateChange.NewState != "AP" {
		t.Errorf("unexpected event: %+v", event)
	}
}
