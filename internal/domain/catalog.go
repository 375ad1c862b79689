package domain

import (
	"fmt"
	"sort"
)

// Replication methods understood by the tap.
const (
	ReplicationFullTable   = "FULL_TABLE"
	ReplicationIncremental = "INCREMENTAL"
	ReplicationLogBased    = "LOG_BASED"
)

// Inclusion values for metadata entries.
const (
	InclusionAvailable   = "available"
	InclusionAutomatic   = "automatic"
	InclusionUnsupported = "unsupported"
)

// Well known metadata keys.
const (
	MetaInclusion            = "inclusion"
	MetaSelected             = "selected"
	MetaSelectedByDefault    = "selected-by-default"
	MetaTableKeyProperties   = "table-key-properties"
	MetaValidReplicationKeys = "valid-replication-keys"
	MetaReplicationMethod    = "replication-method"
	MetaForcedReplication    = "forced-replication-method"
	MetaReplicationKey       = "replication-key"
	MetaSchemaName           = "schema-name"
	MetaIsView               = "is-view"
	MetaSQLDatatype          = "sql-datatype"
)

// Catalog is the document produced by discovery and consumed by sync.
type Catalog struct {
	Streams []*CatalogEntry `json:"streams"`
}

// CatalogEntry describes one stream (a table or a view).
type CatalogEntry struct {
	TapStreamID       string   `json:"tap_stream_id"`
	Stream            string   `json:"stream,omitempty"`
	TableName         string   `json:"table_name,omitempty"`
	DatabaseName      string   `json:"database_name,omitempty"`
	KeyProperties     []string `json:"key_properties"`
	ReplicationMethod string   `json:"replication_method,omitempty"`
	ReplicationKey    string   `json:"replication_key,omitempty"`
	IsView            bool     `json:"is_view"`
	Schema            *Schema  `json:"schema"`
	Metadata          Metadata `json:"metadata"`
}

// Entry finds a stream by its tap_stream_id.
func (c *Catalog) Entry(id string) (*CatalogEntry, bool) {
	for _, e := range c.Streams {
		if e.TapStreamID == id {
			return e, true
		}
	}
	return nil, false
}

// Selected returns the selected streams in catalog order.
func (c *Catalog) Selected() []*CatalogEntry {
	var out []*CatalogEntry
	for _, e := range c.Streams {
		if e.IsSelected() {
			out = append(out, e)
		}
	}
	return out
}

// MetadataEntry is a breadcrumb addressed metadata map.
type MetadataEntry struct {
	Breadcrumb []string       `json:"breadcrumb"`
	Metadata   map[string]any `json:"metadata"`
}

// Metadata is the list of metadata entries of a catalog entry.
type Metadata []MetadataEntry

// Root returns the stream level metadata, or nil.
func (m Metadata) Root() map[string]any {
	for _, e := range m {
		if len(e.Breadcrumb) == 0 {
			return e.Metadata
		}
	}
	return nil
}

// Property returns the metadata of a top level property, or nil.
func (m Metadata) Property(name string) map[string]any {
	for _, e := range m {
		if len(e.Breadcrumb) == 2 && e.Breadcrumb[0] == "properties" && e.Breadcrumb[1] == name {
			return e.Metadata
		}
	}
	return nil
}

// PropertyOrder lists property names in the order their metadata appears.
func (m Metadata) PropertyOrder() []string {
	var out []string
	for _, e := range m {
		if len(e.Breadcrumb) == 2 && e.Breadcrumb[0] == "properties" {
			out = append(out, e.Breadcrumb[1])
		}
	}
	return out
}

func boolMeta(md map[string]any, key string) (value, ok bool) {
	if md == nil {
		return false, false
	}
	v, ok := md[key].(bool)
	return v, ok
}

func stringMeta(md map[string]any, key string) string {
	if md == nil {
		return ""
	}
	s, _ := md[key].(string)
	return s
}

func stringsMeta(md map[string]any, key string) []string {
	if md == nil {
		return nil
	}
	switch v := md[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// isSelected applies the Singer selection rule to a single metadata map.
// Entries with no explicit choice default to selected.
func isSelected(md map[string]any) bool {
	if v, ok := boolMeta(md, MetaSelected); ok {
		return v
	}
	if v, ok := boolMeta(md, MetaSelectedByDefault); ok {
		return v
	}
	return true
}

// IsSelected reports whether the stream should be synced.
func (e *CatalogEntry) IsSelected() bool {
	return isSelected(e.Metadata.Root())
}

// Keys returns the stream's key properties.
func (e *CatalogEntry) Keys() []string {
	if len(e.KeyProperties) > 0 {
		return e.KeyProperties
	}
	return stringsMeta(e.Metadata.Root(), MetaTableKeyProperties)
}

// SchemaName returns the database schema holding the table.
func (e *CatalogEntry) SchemaName() string {
	return stringMeta(e.Metadata.Root(), MetaSchemaName)
}

// SQLDatatype returns the recorded SQL Server type of a column.
func (e *CatalogEntry) SQLDatatype(column string) string {
	return stringMeta(e.Metadata.Property(column), MetaSQLDatatype)
}

// SelectedProperties returns the columns to read, in metadata order followed
// by any schema-only properties in name order. Key properties and the given
// replication key are always included.
func (e *CatalogEntry) SelectedProperties(replicationKey string) []string {
	if e.Schema == nil {
		return nil
	}
	forced := make(map[string]bool)
	for _, k := range e.Keys() {
		forced[k] = true
	}
	if replicationKey != "" {
		forced[replicationKey] = true
	}

	ordered := e.Metadata.PropertyOrder()
	seen := make(map[string]bool, len(ordered))
	var rest []string
	for name := range e.Schema.Properties {
		rest = append(rest, name)
	}
	sort.Strings(rest)

	var out []string
	consider := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if _, ok := e.Schema.Properties[name]; !ok {
			return
		}
		md := e.Metadata.Property(name)
		switch {
		case forced[name]:
		case stringMeta(md, MetaInclusion) == InclusionUnsupported:
			return
		case stringMeta(md, MetaInclusion) == InclusionAutomatic:
		case !isSelected(md):
			return
		}
		out = append(out, name)
	}
	for _, name := range ordered {
		consider(name)
	}
	for _, name := range rest {
		consider(name)
	}
	return out
}

// Replication resolves the replication method and key of the stream. Explicit
// entry fields win over metadata. An incremental stream without a key is an
// error.
func (e *CatalogEntry) Replication() (method, key string, err error) {
	root := e.Metadata.Root()
	method = e.ReplicationMethod
	if method == "" {
		method = stringMeta(root, MetaReplicationMethod)
	}
	if method == "" {
		method = stringMeta(root, MetaForcedReplication)
	}
	key = e.ReplicationKey
	if key == "" {
		key = stringMeta(root, MetaReplicationKey)
	}

	switch method {
	case "":
		if key != "" {
			return ReplicationIncremental, key, nil
		}
		return ReplicationFullTable, "", nil
	case ReplicationFullTable:
		return ReplicationFullTable, "", nil
	case ReplicationIncremental:
		if key == "" {
			return "", "", &OpError{Op: "catalog.replication", Kind: KindInvalidConfig,
				Err: fmt.Errorf("stream %s uses INCREMENTAL replication without a replication key", e.TapStreamID)}
		}
		if e.Schema != nil {
			if _, ok := e.Schema.Properties[key]; !ok {
				return "", "", &OpError{Op: "catalog.replication", Kind: KindInvalidConfig,
					Err: fmt.Errorf("replication key %q is not a property of stream %s", key, e.TapStreamID)}
			}
		}
		return ReplicationIncremental, key, nil
	default:
		return "", "", &OpError{Op: "catalog.replication", Kind: KindUnsupported,
			Err: fmt.Errorf("replication method %s is not supported (stream %s)", method, e.TapStreamID)}
	}
}
