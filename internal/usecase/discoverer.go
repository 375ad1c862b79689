// Package usecase contains the business logic of the tap: catalog discovery
// and stream synchronization.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/tap-mssql/internal/domain"
	"github.com/naka-gawa/tap-mssql/internal/gateway"
)

// discoveryConcurrency bounds the tables inspected at once.
const discoveryConcurrency = 8

// Discoverer is the use case for building a catalog from the database.
// It orchestrates the metadata queries and maps them to catalog entries.
type Discoverer struct {
	source   gateway.Source
	logger   *slog.Logger
	database string
	hd       bool
}

// NewDiscoverer creates a new Discoverer. With hd set, schemas carry the high
// definition numeric and length constraints.
func NewDiscoverer(source gateway.Source, logger *slog.Logger, database string, hd bool) *Discoverer {
	return &Discoverer{
		source:   source,
		logger:   logger,
		database: database,
		hd:       hd,
	}
}

// Discover lists tables and views of the given schemas (all when empty) and
// returns their catalog entries sorted by tap_stream_id.
func (d *Discoverer) Discover(ctx context.Context, schemas []string) (*domain.Catalog, error) {
	d.logger.Info("Discovering streams", "schemas", schemas)

	tables, err := d.source.ListTables(ctx, schemas)
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.CatalogEntry, len(tables))

	// Fetch columns and keys of every table concurrently.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(discoveryConcurrency)
	for i, t := range tables {
		i, t := i, t
		eg.Go(func() error {
			columns, err := d.source.ListColumns(egCtx, t.Schema, t.Name)
			if err != nil {
				return err
			}
			if len(columns) == 0 {
				d.logger.Warn("Skipping table without columns", "schema", t.Schema, "table", t.Name)
				return nil
			}
			keys, err := d.source.ListPrimaryKeys(egCtx, t.Schema, t.Name)
			if err != nil {
				return err
			}
			entries[i] = d.entryFor(t, columns, keys)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	catalog := &domain.Catalog{Streams: make([]*domain.CatalogEntry, 0, len(entries))}
	for _, e := range entries {
		if e != nil {
			catalog.Streams = append(catalog.Streams, e)
		}
	}
	sort.Slice(catalog.Streams, func(i, j int) bool {
		return catalog.Streams[i].TapStreamID < catalog.Streams[j].TapStreamID
	})

	d.logger.Info("Discovery complete", "streams", len(catalog.Streams))
	return catalog, nil
}

// StreamID names the stream of a table.
func StreamID(schema, table string) string {
	return fmt.Sprintf("%s-%s", schema, table)
}

func (d *Discoverer) entryFor(t gateway.Table, columns []gateway.Column, primaryKeys []string) *domain.CatalogEntry {
	schema := &domain.Schema{
		Type:       domain.TypeList{"object"},
		Properties: make(map[string]*domain.Schema, len(columns)),
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		schema.Properties[c.Name] = JSONSchemaFor(c, d.hd)
		known[c.Name] = true
	}

	keys := make([]string, 0, len(primaryKeys))
	isKey := make(map[string]bool, len(primaryKeys))
	for _, k := range primaryKeys {
		if known[k] {
			keys = append(keys, k)
			isKey[k] = true
		}
	}
	if len(keys) > 0 {
		schema.Required = keys
	}

	var replicationKeys []string
	for _, c := range columns {
		if gateway.IsOrderable(c.DataType) {
			replicationKeys = append(replicationKeys, c.Name)
		}
	}
	if replicationKeys == nil {
		replicationKeys = []string{}
	}

	id := StreamID(t.Schema, t.Name)
	metadata := domain.Metadata{{
		Breadcrumb: []string{},
		Metadata: map[string]any{
			domain.MetaInclusion:            domain.InclusionAvailable,
			domain.MetaTableKeyProperties:   keys,
			domain.MetaSchemaName:           t.Schema,
			domain.MetaIsView:               t.IsView(),
			domain.MetaValidReplicationKeys: replicationKeys,
		},
	}}
	for _, c := range columns {
		inclusion := domain.InclusionAvailable
		if isKey[c.Name] {
			inclusion = domain.InclusionAutomatic
		}
		metadata = append(metadata, domain.MetadataEntry{
			Breadcrumb: []string{"properties", c.Name},
			Metadata: map[string]any{
				domain.MetaInclusion:   inclusion,
				domain.MetaSQLDatatype: strings.ToLower(c.DataType),
			},
		})
	}

	return &domain.CatalogEntry{
		TapStreamID:   id,
		Stream:        id,
		TableName:     t.Name,
		DatabaseName:  d.database,
		KeyProperties: keys,
		IsView:        t.IsView(),
		Schema:        schema,
		Metadata:      metadata,
	}
}
