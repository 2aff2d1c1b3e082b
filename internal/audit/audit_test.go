package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeEntries(t *testing.T, path string, entries ...Entry) {
	t.Helper()
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	for _, e := range entries {
		if _, err := l.Record(e); err != nil {
			t.Fatal(err)
		}
	}
}

func entry(cycle, action, outcome string) Entry {
	return Entry{CycleID: cycle, Scope: "AGENT", Action: Action{Type: action}, AutonomyLevel: "tactical", Outcome: outcome}
}

func TestRecordChainsFromGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if l.Head() != GenesisHash {
		t.Errorf("new journal head = %s", l.Head())
	}
	h1, err := l.Record(entry("c1", "heartbeat_log", "auto_executed"))
	if err != nil {
		t.Fatal(err)
	}
	if l.Head() != h1 {
		t.Errorf("head should advance to %s", h1)
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !bytes.Contains(lines[0], []byte(`"prev_hash":"`+GenesisHash+`"`)) {
		t.Errorf("first entry must reference genesis: %s", lines[0])
	}
	if HashLine(lines[0]) != h1 {
		t.Error("Record must return the hash of the written line")
	}
}

func TestReopenContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	writeEntries(t, path, entry("c1", "heartbeat_log", "auto_executed"))
	writeEntries(t, path, entry("c2", "delete_data", "prohibited"), entry("c2", "scope_change", "escalated"))

	r := Verify(path)
	if !r.Valid || r.Lines != 3 {
		t.Fatalf("expected valid 3-line chain, got %+v", r)
	}

	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if l.Head() != r.Head {
		t.Errorf("reopened head %s != verified head %s", l.Head(), r.Head)
	}
}

func TestRecordFillsTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	l.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	_, _ = l.Record(entry("c1", "heartbeat_log", "auto_executed"))
	l.Close()

	entries, err := Tail(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Timestamp != "2026-03-14T09:30:00.000Z" {
		t.Errorf("timestamp = %s", entries[0].Timestamp)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	writeEntries(t, path,
		entry("c1", "heartbeat_log", "auto_executed"),
		entry("c1", "delete_data", "prohibited"),
		entry("c1", "jira_comment", "auto_executed"),
	)

	data, _ := os.ReadFile(path)
	tampered := strings.Replace(string(data), `"outcome":"prohibited"`, `"outcome":"auto_executed"`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatal(err)
	}

	r := Verify(path)
	if r.Valid {
		t.Fatal("expected tampering to be detected")
	}
	if r.ErrorLine != 3 {
		t.Errorf("expected break at line 3, got %d (%s)", r.ErrorLine, r.Error)
	}
}

func TestVerifyRejectsForeignGenesis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	os.WriteFile(path, []byte(`{"prev_hash":"sha256:abc"}`+"\n"), 0o600)
	r := Verify(path)
	if r.Valid || r.ErrorLine != 1 || !strings.Contains(r.Error, "genesis") {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestVerifyParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	os.WriteFile(path, []byte("not json\n"), 0o600)
	r := Verify(path)
	if r.Valid || r.ErrorLine != 1 || !strings.Contains(r.Error, "parse error") {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	r := Verify(filepath.Join(t.TempDir(), "nope.jsonl"))
	if r.Valid || !strings.HasPrefix(r.Error, "open:") {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestVerifyEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	os.WriteFile(path, nil, 0o600)
	r := Verify(path)
	if !r.Valid || r.Lines != 0 || r.Head != GenesisHash {
		t.Errorf("empty journal should verify: %+v", r)
	}
}
