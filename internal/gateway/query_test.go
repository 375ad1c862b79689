package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, "[users]", QuoteIdentifier("users"))
	assert.Equal(t, "[odd]]name]", QuoteIdentifier("odd]name"))
	assert.Equal(t, "[dbo].[order lines]", QuoteTable("dbo", "order lines"))
}

func TestQuery_Build(t *testing.T) {
	testCases := []struct {
		name         string
		query        Query
		expectedSQL  string
		expectedArgs []any
		expectError  bool
	}{
		{
			name:        "full table",
			query:       Query{Schema: "dbo", Table: "users", Columns: []string{"id", "name"}},
			expectedSQL: "SELECT [id], [name] FROM [dbo].[users]",
		},
		{
			name:        "incremental without start",
			query:       Query{Schema: "dbo", Table: "users", Columns: []string{"id"}, ReplicationKey: "id", ReplicationKeyType: "bigint"},
			expectedSQL: "SELECT [id] FROM [dbo].[users] ORDER BY [id] ASC",
		},
		{
			name: "incremental with numeric bookmark",
			query: Query{Schema: "dbo", Table: "users", Columns: []string{"id"}, ReplicationKey: "id",
				ReplicationKeyType: "bigint", Start: json.Number("42")},
			expectedSQL:  "SELECT [id] FROM [dbo].[users] WHERE [id] >= @p1 ORDER BY [id] ASC",
			expectedArgs: []any{int64(42)},
		},
		{
			name: "decimal bookmark stays textual",
			query: Query{Schema: "dbo", Table: "t", Columns: []string{"amount"}, ReplicationKey: "amount",
				ReplicationKeyType: "decimal", Start: json.Number("10.25")},
			expectedSQL:  "SELECT [amount] FROM [dbo].[t] WHERE [amount] >= @p1 ORDER BY [amount] ASC",
			expectedArgs: []any{"10.25"},
		},
		{
			name: "datetime bookmark is parsed",
			query: Query{Schema: "dbo", Table: "t", Columns: []string{"ts"}, ReplicationKey: "ts",
				ReplicationKeyType: "datetime2", Start: "2024-03-01T10:00:00.5Z"},
			expectedSQL:  "SELECT [ts] FROM [dbo].[t] WHERE [ts] >= @p1 ORDER BY [ts] ASC",
			expectedArgs: []any{time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC)},
		},
		{
			name: "rowversion bookmark is decoded",
			query: Query{Schema: "dbo", Table: "t", Columns: []string{"rv"}, ReplicationKey: "rv",
				ReplicationKeyType: "timestamp", Start: "0x00000000000007D1"},
			expectedSQL:  "SELECT [rv] FROM [dbo].[t] WHERE [rv] >= @p1 ORDER BY [rv] ASC",
			expectedArgs: []any{[]byte{0, 0, 0, 0, 0, 0, 0x07, 0xD1}},
		},
		{
			name: "untyped key with a nanosecond timestamp bookmark",
			query: Query{Schema: "dbo", Table: "t", Columns: []string{"ts"}, ReplicationKey: "ts",
				Start: "2024-01-02T03:04:05.123456789Z"},
			expectedSQL:  "SELECT [ts] FROM [dbo].[t] WHERE [ts] >= @p1 ORDER BY [ts] ASC",
			expectedArgs: []any{time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.UTC)},
		},
		{
			name: "untyped key with a text bookmark",
			query: Query{Schema: "dbo", Table: "t", Columns: []string{"code"}, ReplicationKey: "code",
				Start: "abc"},
			expectedSQL:  "SELECT [code] FROM [dbo].[t] WHERE [code] >= @p1 ORDER BY [code] ASC",
			expectedArgs: []any{"abc"},
		},
		{
			name:        "limit",
			query:       Query{Schema: "dbo", Table: "users", Columns: []string{"id"}, Limit: 1},
			expectedSQL: "SELECT TOP (1) [id] FROM [dbo].[users]",
		},
		{
			name: "bad rowversion bookmark",
			query: Query{Schema: "dbo", Table: "t", Columns: []string{"rv"}, ReplicationKey: "rv",
				ReplicationKeyType: "rowversion", Start: "zz"},
			expectError: true,
		},
		{
			name: "bad datetime bookmark",
			query: Query{Schema: "dbo", Table: "t", Columns: []string{"ts"}, ReplicationKey: "ts",
				ReplicationKeyType: "datetime", Start: json.Number("12")},
			expectError: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stmt, args, err := tc.query.Build()
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedSQL, stmt)
			assert.Equal(t, tc.expectedArgs, args)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2024-01-02T03:04:05Z", "2024-01-02T03:04:05+09:00", "2024-01-02T03:04:05.1234567", "2024-01-02"} {
		_, err := ParseTimestamp(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseTimestamp("02/01/2024")
	assert.Error(t, err)
}

func TestTypeFamilies(t *testing.T) {
	assert.True(t, IsOrderable("BIGINT"))
	assert.True(t, IsOrderable("datetime2"))
	assert.True(t, IsOrderable("timestamp"))
	assert.False(t, IsOrderable("nvarchar"))
	assert.False(t, IsOrderable("time"))
	assert.True(t, IsTemporal("time"))
	assert.True(t, IsRowVersion("rowversion"))
}
