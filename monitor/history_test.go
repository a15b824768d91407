package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func entryAt(i int) Entry {
	return Entry{Sample: Sample{
		Timestamp: time.Date(2026, 8, 23, 0, 0, i, 0, time.UTC),
		RAHours:   float64(i),
	}}
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(DefaultHistorySize)
	for i := 0; i < DefaultHistorySize+1; i++ {
		h.Append(entryAt(i))
	}
	if got := h.Len(); got != DefaultHistorySize {
		t.Fatalf("Len = %d, want %d", got, DefaultHistorySize)
	}
	all := h.Last(0)
	// The oldest entry (0) was evicted; order is preserved.
	if got := all[0].RAHours; got != 1 {
		t.Errorf("oldest entry = %v, want 1", got)
	}
	if got := all[len(all)-1].RAHours; got != DefaultHistorySize {
		t.Errorf("newest entry = %v, want %d", got, DefaultHistorySize)
	}
	for i := 1; i < len(all); i++ {
		if all[i].RAHours != all[i-1].RAHours+1 {
			t.Fatalf("entries out of order at %d: %v after %v", i, all[i].RAHours, all[i-1].RAHours)
		}
	}
}

func TestHistoryLast(t *testing.T) {
	h := NewHistory(10)
	for i := 0; i < 5; i++ {
		h.Append(entryAt(i))
	}
	last := h.Last(2)
	if len(last) != 2 || last[0].RAHours != 3 || last[1].RAHours != 4 {
		t.Errorf("Last(2) = %+v", last)
	}
	if got := h.Last(100); len(got) != 5 {
		t.Errorf("Last(100) returned %d entries, want 5", len(got))
	}
	h.Clear()
	if h.Len() != 0 || len(h.Last(0)) != 0 {
		t.Error("Clear left entries behind")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	e := entryAt(0)
	e.DecDegrees, e.AltDegrees, e.AzDegrees = 45.5, 30, 120
	if err := WriteCSV(&buf, []Entry{e}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if got, want := lines[0], "timestamp,ra_hours,dec_degrees,alt_degrees,az_degrees"; got != want {
		t.Errorf("header = %q, want %q", got, want)
	}
	if !strings.Contains(lines[1], "45.5") {
		t.Errorf("row missing declination: %q", lines[1])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, []Entry{entryAt(0), entryAt(1)}); err != nil {
		t.Fatal(err)
	}
	var doc struct {
		ExportTime string `json:"export_time"`
		Count      int    `json:"count"`
		Positions  []struct {
			Timestamp string  `json:"timestamp"`
			RAHours   float64 `json:"ra_hours"`
		} `json:"positions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if doc.Count != 2 || len(doc.Positions) != 2 {
		t.Errorf("count = %d, positions = %d, want 2 each", doc.Count, len(doc.Positions))
	}
	if doc.ExportTime == "" {
		t.Error("export_time missing")
	}
	if doc.Positions[1].RAHours != 1 {
		t.Errorf("positions[1].ra_hours = %v, want 1", doc.Positions[1].RAHours)
	}
}

func TestExportEmptyHistory(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []string{"csv", "json"} {
		path := filepath.Join(dir, "out."+format)
		var err error
		if format == "csv" {
			err = ExportCSV(path, nil)
		} else {
			err = ExportJSON(path, nil)
		}
		if !errors.Is(err, ErrNoHistory) {
			t.Errorf("%s export error = %v, want ErrNoHistory", format, err)
		}
		// No file is created on the empty-history path.
		if _, serr := os.Stat(path); !os.IsNotExist(serr) {
			t.Errorf("%s export created %q", format, path)
		}
	}
}

func TestExportHistoryFiles(t *testing.T) {
	s := &fakeSampler{}
	s.set(6, 30, 120, 45)
	m := New(s)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "history.csv")
	if err := m.ExportHistory(csvPath, "csv"); err != nil {
		t.Fatalf("csv export: %v", err)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "timestamp,") {
		t.Errorf("csv export missing header: %q", data)
	}
	jsonPath := filepath.Join(dir, "history.json")
	if err := m.ExportHistory(jsonPath, "json"); err != nil {
		t.Fatalf("json export: %v", err)
	}
	if err := m.ExportHistory(filepath.Join(dir, "x"), "xml"); err == nil {
		t.Error("unknown format accepted")
	}
}
