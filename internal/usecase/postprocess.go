package usecase

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/naka-gawa/tap-mssql/internal/domain"
	"github.com/naka-gawa/tap-mssql/internal/gateway"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05.9999999"
)

// recordConverter turns driver values of one stream into JSON ready values.
type recordConverter struct {
	types  map[string]string
	base64 map[string]bool
}

func newRecordConverter(entry *domain.CatalogEntry, columns []string) *recordConverter {
	c := &recordConverter{
		types:  make(map[string]string, len(columns)),
		base64: make(map[string]bool),
	}
	for _, name := range columns {
		c.types[name] = entry.SQLDatatype(name)
		if entry.Schema == nil {
			continue
		}
		if p := entry.Schema.Properties[name]; p != nil && p.ContentEncoding == "base64" {
			c.base64[name] = true
		}
	}
	return c
}

// convert rewrites row in place and returns it.
func (c *recordConverter) convert(row map[string]any) map[string]any {
	for name, v := range row {
		row[name] = convertValue(v, c.types[name], c.base64[name])
	}
	return row
}

// convertValue maps a go-mssqldb value to its record form. dataType may be
// empty when the catalog carries no sql-datatype metadata.
func convertValue(v any, dataType string, asBase64 bool) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		switch {
		case gateway.IsDate(dataType):
			return x.Format(dateLayout)
		case gateway.IsTime(dataType):
			return x.Format(timeLayout)
		}
		return x.Format(time.RFC3339Nano)
	case []byte:
		return convertBytes(x, dataType, asBase64)
	case float32:
		return float64(x)
	case bool, string, float64, int64, int32, int16, int8, int, uint8:
		return x
	case json.Number:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func convertBytes(b []byte, dataType string, asBase64 bool) any {
	switch {
	case gateway.IsRowVersion(dataType):
		return "0x" + strings.ToUpper(hex.EncodeToString(b))
	case gateway.IsDecimal(dataType), gateway.IsMoney(dataType):
		return json.Number(string(b))
	case gateway.IsUUID(dataType):
		var id mssql.UniqueIdentifier
		if err := id.Scan(b); err == nil {
			return id.String()
		}
		return strings.ToUpper(hex.EncodeToString(b))
	case asBase64, gateway.IsBinary(dataType):
		return base64.StdEncoding.EncodeToString(b)
	}
	return string(b)
}
