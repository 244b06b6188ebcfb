package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openBackends(t *testing.T) map[string]Journal {
	t.Helper()

	bolt, err := OpenBolt(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenBolt() error = %v", err)
	}
	lite, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() {
		bolt.Close()
		lite.Close()
	})
	return map[string]Journal{"bolt": bolt, "sqlite": lite}
}

func TestJournalRecordAndList(t *testing.T) {
	start := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	for name, j := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			attempts := []Attempt{
				{SessionID: "s1", Number: 1, Source: "web", SSID: "HomeNet", Outcome: OutcomeVerifyFailed, Error: "connectivity not confirmed before timeout"},
				{SessionID: "s1", Number: 2, Source: "bluetooth", SSID: "HomeNet", Outcome: OutcomeApplyFailed, Error: "failed to apply radio configuration"},
				{SessionID: "s1", Number: 3, Source: "web", SSID: "HomeNet", Outcome: OutcomeConnected},
			}
			for i := range attempts {
				attempts[i].StartedAt = start.Add(time.Duration(i) * time.Minute)
				attempts[i].FinishedAt = attempts[i].StartedAt.Add(12 * time.Second)
				if err := j.Record(attempts[i]); err != nil {
					t.Fatalf("Record() error = %v", err)
				}
			}

			all, err := j.List(0)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("List(0) returned %d attempts, want 3", len(all))
			}
			if all[0].Number != 3 || all[2].Number != 1 {
				t.Errorf("List() order = %d,%d,%d, want newest first", all[0].Number, all[1].Number, all[2].Number)
			}
			if all[0].Seq <= all[1].Seq {
				t.Errorf("Seq not increasing: %d then %d", all[1].Seq, all[0].Seq)
			}
			if all[0].Outcome != OutcomeConnected || all[0].Error != "" {
				t.Errorf("newest = %+v", all[0])
			}
			if all[2].Error == "" || all[2].Outcome != OutcomeVerifyFailed {
				t.Errorf("oldest = %+v", all[2])
			}
			if d := all[1].Duration(); d != 12*time.Second {
				t.Errorf("Duration() = %v, want 12s", d)
			}
			if !all[2].StartedAt.Equal(start) {
				t.Errorf("StartedAt = %v, want %v", all[2].StartedAt, start)
			}

			two, err := j.List(2)
			if err != nil {
				t.Fatal(err)
			}
			if len(two) != 2 || two[0].Number != 3 {
				t.Errorf("List(2) = %+v", two)
			}
		})
	}
}

func TestBoltJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(Attempt{SessionID: "s1", Number: 1, SSID: "HomeNet", Outcome: OutcomeConnected}); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if err := j.Record(Attempt{SessionID: "s2", Number: 1, SSID: "HomeNet", Outcome: OutcomeConnected}); err != nil {
		t.Fatal(err)
	}

	all, err := j.List(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].SessionID != "s2" || all[0].Seq != 2 {
		t.Errorf("List() after reopen = %+v", all)
	}
}

func TestOpen(t *testing.T) {
	j, err := Open("", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := j.(Nop); !ok {
		t.Errorf("Open(\"\") = %T, want Nop", j)
	}

	if _, err := Open("postgres", "x"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(postgres) error = %v, want ErrUnknownBackend", err)
	}

	j, err = Open(BackendSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	j.Close()
}

func TestOutcomeString(t *testing.T) {
	for o := OutcomeConnected; o <= OutcomeVerifyFailed; o++ {
		got, err := ParseOutcome(o.String())
		if err != nil || got != o {
			t.Errorf("ParseOutcome(%q) = %v, %v", o.String(), got, err)
		}
	}
	if Outcome(0).String() != "UNKNOWN" {
		t.Errorf("Outcome(0).String() = %q", Outcome(0).String())
	}
}
