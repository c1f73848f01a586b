// Package export writes recent triage history to TXT, CSV, JSON or
// Prometheus text files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/narcan-finder/internal/history"
)

// #region format
// Format names an export encoding; its value is also the file extension.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatProm Format = "prom"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("export: unknown format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatTXT, FormatCSV, FormatJSON, FormatProm}
}

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// #endregion format

// #region exporter
const (
	DefaultLimit = 10
	dirMode      = 0o755
	fileMode     = 0o644
	stampLayout  = "20060102_150405"
)

// Source supplies history rows, newest first.
type Source interface {
	Recent(limit int) ([]history.Entry, error)
}

// Exporter writes files into Dir.
type Exporter struct {
	Dir    string
	Now    func() time.Time
	Logger *zap.Logger
}

// New returns an Exporter for dir using the wall clock.
func New(dir string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{Dir: dir, Now: time.Now, Logger: logger}
}

// Export reads the newest limit rows from src and writes them in format.
// It returns the written path.
func (e *Exporter) Export(src Source, format Format, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	entries, err := src.Recent(limit)
	if err != nil {
		return "", fmt.Errorf("export: load history: %w", err)
	}
	return e.Write(format, entries)
}

// Write encodes entries and writes them to a timestamped file.
func (e *Exporter) Write(format Format, entries []history.Entry) (string, error) {
	data, err := Encode(format, entries)
	if err != nil {
		return "", err
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	path := filepath.Join(e.Dir, fmt.Sprintf("narcan_%s.%s", now().Format(stampLayout), format))
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	if e.Logger != nil {
		e.Logger.Info("history exported",
			zap.String("path", path),
			zap.String("format", string(format)),
			zap.Int("rows", len(entries)))
	}
	return path, nil
}

// Encode renders entries in format without touching the filesystem.
func Encode(format Format, entries []history.Entry) ([]byte, error) {
	switch format {
	case FormatTXT:
		return encodeText(entries), nil
	case FormatCSV:
		return encodeCSV(entries)
	case FormatJSON:
		return encodeJSON(entries)
	case FormatProm:
		return encodeProm(entries)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// #endregion exporter

// #region encoders
func encodeText(entries []history.Entry) []byte {
	var b bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&b, "--- ID %s ---\n", e.ID)
		fmt.Fprintf(&b, "TIME: %s\n", e.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "URGENCY: %.3f (%s)\n", e.Verdict.Score, e.Verdict.Tier)
		fmt.Fprintf(&b, "\nLOCATION:\n%s\n\nSYMPTOMS:\n%s\n\nADVICE:\n%s\n", e.Location, e.Symptoms, e.Advice)
		b.WriteString(strings.Repeat("=", 40))
		b.WriteString("\n\n")
	}
	return b.Bytes()
}

var csvHeader = []string{
	"ID", "Created At", "Location", "Symptoms", "CPU", "Memory",
	"Score", "Tier", "Overridden", "Advice",
}

func encodeCSV(entries []history.Entry) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("export: csv: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.ID,
			e.CreatedAt.Format(time.RFC3339),
			e.Location,
			e.Symptoms,
			strconv.FormatFloat(e.Sample.CPU, 'f', 4, 64),
			strconv.FormatFloat(e.Sample.Memory, 'f', 4, 64),
			strconv.FormatFloat(e.Verdict.Score, 'f', 4, 64),
			string(e.Verdict.Tier),
			strconv.FormatBool(e.Verdict.Overridden),
			e.Advice,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("export: csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: csv: %w", err)
	}
	return b.Bytes(), nil
}

func encodeJSON(entries []history.Entry) ([]byte, error) {
	if entries == nil {
		entries = []history.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: json: %w", err)
	}
	return append(data, '\n'), nil
}

// #endregion encoders

// #region write
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("export: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("export: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), fileMode); err != nil {
		return fmt.Errorf("export: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename: %w", err)
	}
	return nil
}

// #endregion write
