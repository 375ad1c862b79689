package singer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/tap-mssql/internal/domain"
)

func TestWriter_WriteMessage(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	record := domain.NewRecordMessage("dbo-users", map[string]any{
		"id":     int64(1),
		"amount": json.Number("12345678901234567890.12"),
		"note":   "<b>&</b>",
	}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	n, err := w.WriteMessage(record)
	require.NoError(t, err)
	assert.Zero(t, out.Len(), "records stay buffered until a flush point")

	state := domain.NewState()
	state.SetBookmark("dbo-users", "id", int64(1))
	_, err = w.WriteMessage(domain.NewStateMessage(state))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, len(lines[0])+1, n)
	assert.Equal(t,
		`{"type":"RECORD","stream":"dbo-users","record":{"amount":12345678901234567890.12,"id":1,"note":"<b>&</b>"},"time_extracted":"2024-01-02T03:04:05Z"}`,
		lines[0])
	assert.JSONEq(t, `{"type":"STATE","value":{"bookmarks":{"dbo-users":{"replication_key":"id","replication_key_value":1}}}}`, lines[1])
}

func TestWriter_ConcurrentWritesKeepLinesIntact(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(&out)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := w.WriteMessage(domain.NewRecordMessage("s", map[string]any{"i": i}, time.Now()))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	assert.Len(t, lines, 20)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), line)
	}
}

func TestReadCatalogAndState(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`{"streams":[{"tap_stream_id":"dbo-users","key_properties":[],"schema":{"type":"object"},"metadata":[]}]}`), 0o600))
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"bookmarks":{"dbo-users":{"replication_key":"id","replication_key_value":7}}}`), 0o600))
	emptyPath := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))

	catalog, err := ReadCatalog(catalogPath)
	require.NoError(t, err)
	assert.Len(t, catalog.Streams, 1)

	state, err := ReadState(statePath)
	require.NoError(t, err)
	assert.Equal(t, json.Number("7"), state.Bookmark("dbo-users").ReplicationKeyValue)

	state, err = ReadState(emptyPath)
	require.NoError(t, err)
	assert.Empty(t, state.Bookmarks)

	_, err = ReadCatalog(filepath.Join(dir, "missing.json"))
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	require.NoError(t, os.WriteFile(catalogPath, []byte(`{"streams":`), 0o600))
	_, err = ReadCatalog(catalogPath)
	assert.True(t, domain.IsKind(err, domain.KindInvalidConfig))
}

func TestWriteDocument(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteDocument(&out, map[string]any{"name": "tap-mssql"}))
	assert.Equal(t, "{\n  \"name\": \"tap-mssql\"\n}\n", out.String())
}
