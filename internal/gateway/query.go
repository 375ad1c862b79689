package gateway

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Query selects columns from a table, optionally bounded below and ordered by
// a replication key.
type Query struct {
	Schema  string
	Table   string
	Columns []string

	// ReplicationKey orders the result ascending when set.
	ReplicationKey string
	// ReplicationKeyType is the SQL Server data type of ReplicationKey.
	ReplicationKeyType string
	// Start, when non-nil, keeps rows whose key is >= Start.
	Start any
	// Limit caps the number of rows when positive.
	Limit int
}

// QuoteIdentifier brackets a SQL Server identifier.
func QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteTable returns the bracketed two part name of a table.
func QuoteTable(schema, table string) string {
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}

// Build renders the statement and its arguments.
func (q Query) Build() (string, []any, error) {
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("no columns selected for %s.%s", q.Schema, q.Table)
	}
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = QuoteIdentifier(c)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.Limit > 0 {
		fmt.Fprintf(&sb, "TOP (%d) ", q.Limit)
	}
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(QuoteTable(q.Schema, q.Table))

	var args []any
	if q.ReplicationKey != "" {
		key := QuoteIdentifier(q.ReplicationKey)
		if q.Start != nil {
			start, err := bindValue(q.Start, q.ReplicationKeyType)
			if err != nil {
				return "", nil, fmt.Errorf("invalid starting value for %s: %w", q.ReplicationKey, err)
			}
			fmt.Fprintf(&sb, " WHERE %s >= @p1", key)
			args = append(args, start)
		}
		fmt.Fprintf(&sb, " ORDER BY %s ASC", key)
	}
	return sb.String(), args, nil
}

// bindValue converts a bookmark value read back from JSON into a value the
// driver compares correctly against a column of dataType.
func bindValue(v any, dataType string) (any, error) {
	switch {
	case IsRowVersion(dataType):
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a 0x prefixed hex string, got %T", v)
		}
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
		if err != nil {
			return nil, err
		}
		return b, nil
	case IsTemporal(dataType):
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			return ParseTimestamp(t)
		}
		return nil, fmt.Errorf("expected a date/time string, got %T", v)
	case dataType == "":
		// Catalogs without sql-datatype still carry timestamps written by the tap.
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t, nil
			}
		}
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		return n.String(), nil
	}
	return v, nil
}

// ParseTimestamp accepts the formats written by the tap and by start_date.
func ParseTimestamp(s string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02", "15:04:05.999999999"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a timestamp", s)
}
