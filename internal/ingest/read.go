package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/JaimeStill/verdict/internal/store"
)

// row is one parsed line: column values plus its 1-based line for errors.
type row struct {
	line   int
	values map[string]string
}

func readCSV(r io.Reader, src Source) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	for _, col := range append(append([]string{}, src.IDColumns...), src.TextColumn) {
		if !slices.Contains(header, col) {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}

	var rows []row
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}

		line, _ := cr.FieldPos(0)
		values := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				values[name] = fields[i]
			}
		}
		rows = append(rows, row{line: line, values: values})
	}
}

func readJSONL(r io.Reader, src Source) ([]row, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rows []row
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		values := make(map[string]string, len(obj))
		for k, v := range obj {
			values[k] = stringify(v)
		}
		for _, col := range append(append([]string{}, src.IDColumns...), src.TextColumn) {
			if _, ok := obj[col]; !ok {
				return nil, fmt.Errorf("line %d: %w: %q", line, ErrMissingColumn, col)
			}
		}
		rows = append(rows, row{line: line, values: values})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func build(src Source, rows []row, checksum string) ([]store.InputRecord, error) {
	seen := make(map[string]int, len(rows))
	records := make([]store.InputRecord, 0, len(rows))

	for _, r := range rows {
		parts := make([]string, len(src.IDColumns))
		for i, col := range src.IDColumns {
			parts[i] = strings.TrimSpace(r.values[col])
			if parts[i] == "" {
				return nil, fmt.Errorf("line %d: %w: column %q", r.line, ErrEmptyRecordID, col)
			}
		}
		id := strings.Join(parts, IDSeparator)

		if first, ok := seen[id]; ok {
			return nil, fmt.Errorf("line %d: %w: %q first seen on line %d", r.line, ErrDuplicateRecordID, id, first)
		}
		seen[id] = r.line

		rec := store.InputRecord{
			SourceName:     src.Name,
			RecordID:       id,
			Text:           r.values[src.TextColumn],
			SourceChecksum: checksum,
		}
		if label, ok := r.values[src.LabelColumn]; ok && strings.TrimSpace(label) != "" {
			label = strings.TrimSpace(label)
			rec.GroundTruth = &label
		}
		records = append(records, rec)
	}
	return records, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}
