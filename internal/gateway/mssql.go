// Package gateway provides access to a SQL Server database, hiding the
// driver, authentication and tunnelling details behind the Source interface.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	"golang.org/x/crypto/ssh"

	"github.com/naka-gawa/tap-mssql/internal/config"
	"github.com/naka-gawa/tap-mssql/internal/domain"
)

const (
	// user tables and views across schemas
	listTablesQuery = `SELECT
		TABLE_SCHEMA AS table_schema,
		TABLE_NAME AS table_name,
		TABLE_TYPE AS table_type
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		AND TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY TABLE_SCHEMA, TABLE_NAME`

	listColumnsQuery = `SELECT
		COLUMN_NAME AS column_name,
		DATA_TYPE AS data_type,
		IS_NULLABLE AS is_nullable,
		CHARACTER_MAXIMUM_LENGTH AS character_maximum_length,
		NUMERIC_PRECISION AS numeric_precision,
		NUMERIC_SCALE AS numeric_scale,
		ORDINAL_POSITION AS ordinal_position
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`

	listPrimaryKeysQuery = `SELECT
		kcu.COLUMN_NAME AS column_name
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		AND tc.TABLE_SCHEMA = @p1
		AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION`

	pingTimeout = 2 * time.Minute
)

// Table is a user table or view.
type Table struct {
	Schema string `db:"table_schema"`
	Name   string `db:"table_name"`
	Type   string `db:"table_type"`
}

// IsView reports whether the table is a view.
func (t Table) IsView() bool {
	return t.Type == "VIEW"
}

// Column is the catalog description of a column.
type Column struct {
	Name             string `db:"column_name"`
	DataType         string `db:"data_type"`
	IsNullable       string `db:"is_nullable"`
	CharMaxLength    *int64 `db:"character_maximum_length"`
	NumericPrecision *int64 `db:"numeric_precision"`
	NumericScale     *int64 `db:"numeric_scale"`
	OrdinalPosition  int    `db:"ordinal_position"`
}

// Nullable reports whether the column accepts NULL.
func (c Column) Nullable() bool {
	return strings.EqualFold(c.IsNullable, "YES")
}

// RowFunc receives each row of a query, keyed by column name.
type RowFunc func(row map[string]any) error

// Source defines the behavior of a gateway reading from SQL Server.
type Source interface {
	ListTables(ctx context.Context, schemas []string) ([]Table, error)
	ListColumns(ctx context.Context, schema, table string) ([]Column, error)
	ListPrimaryKeys(ctx context.Context, schema, table string) ([]string, error)
	StreamRows(ctx context.Context, q Query, fn RowFunc) error
}

// MSSQLGateway is the concrete implementation of the Source interface.
type MSSQLGateway struct {
	db        *sqlx.DB
	sshClient *ssh.Client
	echo      bool
	logger    *slog.Logger
}

// NewMSSQLGateway opens a connection pool to the configured server and checks
// it with a ping.
func NewMSSQLGateway(ctx context.Context, cfg *config.ConnectionConfig, logger *slog.Logger) (*MSSQLGateway, error) {
	if cfg.DriverType != config.DefaultDriverType {
		logger.Debug("driver_type is a legacy value, using go-mssqldb", "driver_type", cfg.DriverType)
	}
	logger.Info("Connecting to SQL Server", "dsn", cfg.Redacted())

	connector, err := newConnector(ctx, cfg)
	if err != nil {
		return nil, &domain.OpError{Op: "gateway.connect", Kind: domain.KindConnection, Err: err}
	}

	g := &MSSQLGateway{echo: cfg.EngineParams.Echo, logger: logger}
	if cfg.SSHTunnel != nil {
		logger.Info("Connecting to SQL Server via SSH tunnel", "bastion", cfg.SSHTunnel.Host)
		g.sshClient, err = dialSSH(cfg.SSHTunnel)
		if err != nil {
			return nil, &domain.OpError{Op: "gateway.connect", Kind: domain.KindConnection, Err: err}
		}
		connector.Dialer = &sshDialer{client: g.sshClient}
	}

	db := sqlx.NewDb(sql.OpenDB(connector), "sqlserver")
	db.SetMaxOpenConns(cfg.EngineParams.MaxOpenConns())
	if cfg.EngineParams.PoolSize > 0 {
		db.SetMaxIdleConns(cfg.EngineParams.PoolSize)
	}
	db.SetConnMaxLifetime(cfg.EngineParams.ConnMaxLifetime())
	g.db = db

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	// force a connection and test that it worked
	if err := db.PingContext(pingCtx); err != nil {
		g.Close()
		return nil, &domain.OpError{Op: "gateway.connect", Kind: domain.KindConnection, Err: fmt.Errorf("failed to ping database: %w", err)}
	}
	return g, nil
}

// newConnector builds a go-mssqldb connector, token based when Azure AD is
// configured.
func newConnector(ctx context.Context, cfg *config.ConnectionConfig) (*mssql.Connector, error) {
	if cfg.AzureAD == nil {
		connector, err := mssql.NewConnector(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection string: %w", err)
		}
		return connector, nil
	}

	c, err := mssql.NewAccessTokenConnector(cfg.DSN(), tokenProvider(ctx, cfg.AzureAD))
	if err != nil {
		return nil, fmt.Errorf("failed to create access token connector: %w", err)
	}
	connector, ok := c.(*mssql.Connector)
	if !ok {
		return nil, fmt.Errorf("unexpected connector type %T", c)
	}
	return connector, nil
}

// Close releases the pool and the SSH client.
func (g *MSSQLGateway) Close() {
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			g.logger.Error("failed to close connection with SQL Server", "error", err)
		}
	}
	if g.sshClient != nil {
		if err := g.sshClient.Close(); err != nil {
			g.logger.Error("failed to close SSH connection", "error", err)
		}
	}
}

func (g *MSSQLGateway) logQuery(query string, args []any) {
	if g.echo {
		g.logger.Debug("Executing query", "query", query, "args", args)
	}
}

// ListTables returns user tables and views, optionally limited to schemas.
func (g *MSSQLGateway) ListTables(ctx context.Context, schemas []string) ([]Table, error) {
	g.logQuery(listTablesQuery, nil)
	var tables []Table
	if err := g.db.SelectContext(ctx, &tables, listTablesQuery); err != nil {
		return nil, &domain.OpError{Op: "gateway.list_tables", Kind: domain.KindQuery, Err: fmt.Errorf("failed to retrieve table names: %w", err)}
	}
	if len(schemas) == 0 {
		return tables, nil
	}
	wanted := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		wanted[strings.ToLower(s)] = true
	}
	filtered := tables[:0]
	for _, t := range tables {
		if wanted[strings.ToLower(t.Schema)] {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// ListColumns returns the columns of a table in ordinal order.
func (g *MSSQLGateway) ListColumns(ctx context.Context, schema, table string) ([]Column, error) {
	g.logQuery(listColumnsQuery, []any{schema, table})
	var columns []Column
	if err := g.db.SelectContext(ctx, &columns, listColumnsQuery, schema, table); err != nil {
		return nil, &domain.OpError{Op: "gateway.list_columns", Kind: domain.KindQuery,
			Err: fmt.Errorf("failed to retrieve column details for table %s.%s: %w", schema, table, err)}
	}
	return columns, nil
}

// ListPrimaryKeys returns primary key column names in key order.
func (g *MSSQLGateway) ListPrimaryKeys(ctx context.Context, schema, table string) ([]string, error) {
	g.logQuery(listPrimaryKeysQuery, []any{schema, table})
	var keys []string
	if err := g.db.SelectContext(ctx, &keys, listPrimaryKeysQuery, schema, table); err != nil {
		return nil, &domain.OpError{Op: "gateway.list_primary_keys", Kind: domain.KindQuery,
			Err: fmt.Errorf("failed to retrieve primary key columns for table %s.%s: %w", schema, table, err)}
	}
	return keys, nil
}

// StreamRows runs q and hands every row to fn, stopping at the first error.
func (g *MSSQLGateway) StreamRows(ctx context.Context, q Query, fn RowFunc) error {
	stmt, args, err := q.Build()
	if err != nil {
		return &domain.OpError{Op: "gateway.stream_rows", Kind: domain.KindQuery, Err: err}
	}
	g.logQuery(stmt, args)

	rows, err := g.db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return &domain.OpError{Op: "gateway.stream_rows", Kind: domain.KindQuery,
			Err: fmt.Errorf("failed to execute query on %s.%s: %w", q.Schema, q.Table, err)}
	}
	defer rows.Close()

	for rows.Next() {
		row := make(map[string]any, len(q.Columns))
		if err := rows.MapScan(row); err != nil {
			return &domain.OpError{Op: "gateway.stream_rows", Kind: domain.KindQuery, Err: fmt.Errorf("failed to scan row: %w", err)}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return &domain.OpError{Op: "gateway.stream_rows", Kind: domain.KindQuery, Err: err}
	}
	return nil
}
