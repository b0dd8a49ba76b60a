package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/verdict/internal/ingest"
	"github.com/JaimeStill/verdict/internal/store"
	"github.com/JaimeStill/verdict/internal/store/storetest"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const claimsCSV = "case_id,channel,text,label\n" +
	"17,email,\"Wire the funds, today\",true\n" +
	"17,sms,Lunch at noon?,false\n" +
	"18,email,Invoice attached,\n"

func TestLoadCSVComposesRecordIDs(t *testing.T) {
	path := write(t, "claims.csv", claimsCSV)

	records, checksum, err := ingest.Load(ingest.Source{
		Name:      "claims",
		Path:      path,
		IDColumns: []string{"case_id", "channel"},
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "17|email", records[0].RecordID)
	assert.Equal(t, "Wire the funds, today", records[0].Text)
	require.NotNil(t, records[0].GroundTruth)
	assert.Equal(t, "true", *records[0].GroundTruth)
	assert.Nil(t, records[2].GroundTruth)

	sum, err := ingest.Checksum(path)
	require.NoError(t, err)
	assert.Equal(t, sum, checksum)
	assert.Equal(t, checksum, records[1].SourceChecksum)
	assert.Len(t, checksum, 64)
}

func TestLoadJSONL(t *testing.T) {
	path := write(t, "msgs.jsonl",
		`{"id": 1, "text": "hello", "label": false}`+"\n\n"+
			`{"id": "a-2", "text": "send gift cards", "label": "true", "extra": {"k": 1}}`+"\n")

	records, _, err := ingest.Load(ingest.Source{Name: "msgs", Path: path})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "1", records[0].RecordID)
	assert.Equal(t, "false", *records[0].GroundTruth)
	assert.Equal(t, "a-2", records[1].RecordID)
}

func TestLoadRejectsBadRows(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		err     error
	}{
		{"duplicate id", "d.csv", "id,text\n1,a\n2,b\n1,c\n", ingest.ErrDuplicateRecordID},
		{"empty id", "e.csv", "id,text\n1,a\n ,b\n", ingest.ErrEmptyRecordID},
		{"missing text column", "m.csv", "id,body\n1,a\n", ingest.ErrMissingColumn},
		{"missing jsonl field", "m.jsonl", `{"id": 1}` + "\n", ingest.ErrMissingColumn},
		{"unknown format", "x.parquet", "PAR1", ingest.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(t, tt.file, tt.content)
			_, _, err := ingest.Load(ingest.Source{Name: "s", Path: path})
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestIngestChecksumGate(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	logger := storetest.Discard()

	path := write(t, "claims.csv", claimsCSV)
	src := ingest.Source{Name: "claims", Path: path, IDColumns: []string{"case_id", "channel"}}

	res, err := ingest.Ingest(ctx, s, src, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 3, res.Inserted)

	again, err := ingest.Ingest(ctx, s, src, logger)
	require.NoError(t, err)
	assert.Zero(t, again.Inserted)

	require.NoError(t, os.WriteFile(path, []byte(claimsCSV+"19,email,New row,false\n"), 0o644))
	_, err = ingest.Ingest(ctx, s, src, logger)
	require.ErrorIs(t, err, store.ErrChecksumMismatch)

	n, err := s.CountRecords(ctx, "claims")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIngestRejectsEmptySource(t *testing.T) {
	s := storetest.New(t)
	path := write(t, "empty.csv", "id,text\n")

	_, err := ingest.Ingest(context.Background(), s, ingest.Source{Name: "empty", Path: path}, storetest.Discard())
	assert.ErrorIs(t, err, ingest.ErrNoRecords)
}

func TestIngestRecordsAbsolutePath(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "claims.csv"), []byte(claimsCSV), 0o644))
	t.Chdir(dir)

	src := ingest.Source{Name: "claims", Path: "claims.csv", IDColumns: []string{"case_id", "channel"}}
	_, err := ingest.Ingest(ctx, s, src, storetest.Discard())
	require.NoError(t, err)

	got, err := s.FindSource(ctx, "claims")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got.Path), got.Path)
	assert.Equal(t, "claims.csv", filepath.Base(got.Path))

	// The recorded path stays valid after the working directory changes.
	t.Chdir(t.TempDir())
	_, err = os.Stat(got.Path)
	assert.NoError(t, err)
}
