package monitor

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ErrNoHistory is returned by the export functions when there is
// nothing to write; no file is created in that case.
var ErrNoHistory = errors.New("monitor: no history to export")

// WriteCSV writes entries oldest-first with the standard header.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "ra_hours", "dec_degrees", "alt_degrees", "az_degrees"}); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.Timestamp.Format(time.RFC3339Nano),
			strconv.FormatFloat(e.RAHours, 'f', -1, 64),
			strconv.FormatFloat(e.DecDegrees, 'f', -1, 64),
			strconv.FormatFloat(e.AltDegrees, 'f', -1, 64),
			strconv.FormatFloat(e.AzDegrees, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type exportPosition struct {
	Timestamp  string  `json:"timestamp"`
	RAHours    float64 `json:"ra_hours"`
	DecDegrees float64 `json:"dec_degrees"`
	AltDegrees float64 `json:"alt_degrees"`
	AzDegrees  float64 `json:"az_degrees"`
}

type exportDocument struct {
	ExportTime string           `json:"export_time"`
	Count      int              `json:"count"`
	Positions  []exportPosition `json:"positions"`
}

// WriteJSON writes entries as a single JSON document with an export
// timestamp and count.
func WriteJSON(w io.Writer, entries []Entry) error {
	doc := exportDocument{
		ExportTime: time.Now().Format(time.RFC3339),
		Count:      len(entries),
		Positions:  make([]exportPosition, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Positions = append(doc.Positions, exportPosition{
			Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
			RAHours:    e.RAHours,
			DecDegrees: e.DecDegrees,
			AltDegrees: e.AltDegrees,
			AzDegrees:  e.AzDegrees,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func exportFile(path string, entries []Entry, write func(io.Writer, []Entry) error) error {
	if len(entries) == 0 {
		return ErrNoHistory
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	if err := write(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportCSV writes entries to a new file at path, or ErrNoHistory
// without touching the filesystem when entries is empty.
func ExportCSV(path string, entries []Entry) error {
	return exportFile(path, entries, WriteCSV)
}

// ExportJSON is the JSON counterpart of ExportCSV.
func ExportJSON(path string, entries []Entry) error {
	return exportFile(path, entries, WriteJSON)
}
