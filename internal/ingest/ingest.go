// Package ingest loads a source file into input records behind the checksum
// gate: a source name is bound to the SHA-256 of the first file ingested
// under it, and a later file with different contents is rejected.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/verdict/internal/store"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrMissingColumn     = errors.New("missing column")
	ErrEmptyRecordID     = errors.New("empty record id")
	ErrDuplicateRecordID = errors.New("duplicate record id")
	ErrNoRecords         = errors.New("source contains no records")
)

// Format is a source file encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// IDSeparator joins the values of multiple id columns.
const IDSeparator = "|"

// Source describes a file to ingest and how to read its rows.
type Source struct {
	Name   string `yaml:"name" json:"name"`
	Path   string `yaml:"path" json:"path"`
	Format Format `yaml:"format,omitempty" json:"format,omitempty"`
	// IDColumns compose the record id in order. Defaults to ["id"].
	IDColumns   []string `yaml:"id_columns,omitempty" json:"id_columns,omitempty"`
	TextColumn  string   `yaml:"text_column,omitempty" json:"text_column,omitempty"`
	LabelColumn string   `yaml:"label_column,omitempty" json:"label_column,omitempty"`
}

// Finalize fills defaults and validates.
func (s *Source) Finalize() error {
	if s.Name == "" {
		return fmt.Errorf("source name required")
	}
	if s.Path == "" {
		return fmt.Errorf("source path required")
	}
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}
	s.Path = abs
	if s.Format == "" {
		s.Format = DetectFormat(s.Path)
	}
	if s.Format != FormatCSV && s.Format != FormatJSONL {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, s.Format)
	}
	if len(s.IDColumns) == 0 {
		s.IDColumns = []string{"id"}
	}
	if s.TextColumn == "" {
		s.TextColumn = "text"
	}
	if s.LabelColumn == "" {
		s.LabelColumn = "label"
	}
	return nil
}

// DetectFormat infers the format from the file extension. Unknown extensions
// return the extension itself so validation can name it.
func DetectFormat(path string) Format {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "csv":
		return FormatCSV
	case "jsonl", "ndjson":
		return FormatJSONL
	default:
		return Format(ext)
	}
}

// Checksum returns the hex SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash source: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Load reads every record of src and returns them with the file checksum.
// The checksum covers the raw bytes, so it is computed in the same pass.
func Load(src Source) ([]store.InputRecord, string, error) {
	if err := src.Finalize(); err != nil {
		return nil, "", err
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	r := io.TeeReader(f, h)

	var rows []row
	switch src.Format {
	case FormatCSV:
		rows, err = readCSV(r, src)
	case FormatJSONL:
		rows, err = readJSONL(r, src)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", src.Path, err)
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, "", fmt.Errorf("hash source: %w", err)
	}
	checksum := hex.EncodeToString(h.Sum(nil))

	records, err := build(src, rows, checksum)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", src.Path, err)
	}
	return records, checksum, nil
}

// Store is the persistence Ingest needs.
type Store interface {
	VerifyOrRecordChecksum(ctx context.Context, sourceName, checksum, path string) (bool, error)
	InsertRecords(ctx context.Context, records []store.InputRecord) (int, error)
}

// Result reports an ingest.
type Result struct {
	SourceName string
	Checksum   string
	Records    int
	Inserted   int
}

// Ingest loads src and stores its records. A source name already bound to a
// different checksum fails with store.ErrChecksumMismatch before any record
// is written. Re-ingesting the same file inserts nothing.
func Ingest(ctx context.Context, s Store, src Source, logger *slog.Logger) (Result, error) {
	if err := src.Finalize(); err != nil {
		return Result{}, err
	}

	records, checksum, err := Load(src)
	if err != nil {
		return Result{}, err
	}
	if len(records) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoRecords, src.Path)
	}

	ok, err := s.VerifyOrRecordChecksum(ctx, src.Name, checksum, src.Path)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("%w: source %q was ingested from different contents than %s",
			store.ErrChecksumMismatch, src.Name, src.Path)
	}

	inserted, err := s.InsertRecords(ctx, records)
	if err != nil {
		return Result{}, fmt.Errorf("insert records: %w", err)
	}

	logger.InfoContext(ctx, "source ingested",
		"source", src.Name,
		"records", len(records),
		"inserted", inserted,
		"checksum", checksum[:12],
	)

	return Result{
		SourceName: src.Name,
		Checksum:   checksum,
		Records:    len(records),
		Inserted:   inserted,
	}, nil
}
