package about

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Write(&out, New("1.2.3"), FormatJSON))

	var doc struct {
		Name         string         `json:"name"`
		Version      string         `json:"version"`
		Capabilities []string       `json:"capabilities"`
		Settings     map[string]any `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "tap-mssql", doc.Name)
	assert.Equal(t, "1.2.3", doc.Version)
	assert.Equal(t, []string{"catalog", "state", "discover", "about", "batch", "test"}, doc.Capabilities)
	assert.Contains(t, doc.Settings["properties"], "mssql_connection_config")
}

func TestWrite_Markdown(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Write(&out, New("dev"), FormatMarkdown))

	md := out.String()
	assert.Contains(t, md, "# `tap-mssql`")
	assert.Contains(t, md, "* `batch`\n")
	assert.Contains(t, md, "| mssql_connection_config | True | None | MSSQL connection configuration |")
	assert.Contains(t, md, "| mssql_connection_config.port | False | 1433 |")
	assert.Contains(t, md, "| mssql_connection_config.host | True | None |")
	assert.Contains(t, md, "| batch_config.encoding.compression | False | None |")
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, New("dev"), "yaml")
	assert.ErrorContains(t, err, "unsupported about format")
}
