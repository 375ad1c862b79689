package gateway

import "strings"

// SQL Server data type families, keyed by INFORMATION_SCHEMA.COLUMNS.DATA_TYPE.
var (
	integerTypes  = set("bigint", "int", "smallint", "tinyint")
	decimalTypes  = set("decimal", "numeric")
	moneyTypes    = set("money", "smallmoney")
	floatTypes    = set("float", "real")
	dateTimeTypes = set("datetime", "datetime2", "smalldatetime", "datetimeoffset")
	binaryTypes   = set("binary", "varbinary", "image")
	rowVersion    = set("rowversion", "timestamp")
	stringTypes   = set("char", "varchar", "text", "nchar", "nvarchar", "ntext")
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func norm(dataType string) string {
	return strings.ToLower(strings.TrimSpace(dataType))
}

func IsInteger(dataType string) bool  { return integerTypes[norm(dataType)] }
func IsDecimal(dataType string) bool  { return decimalTypes[norm(dataType)] }
func IsMoney(dataType string) bool    { return moneyTypes[norm(dataType)] }
func IsFloat(dataType string) bool    { return floatTypes[norm(dataType)] }
func IsBinary(dataType string) bool   { return binaryTypes[norm(dataType)] }
func IsString(dataType string) bool   { return stringTypes[norm(dataType)] }
func IsDateTime(dataType string) bool { return dateTimeTypes[norm(dataType)] }
func IsDate(dataType string) bool     { return norm(dataType) == "date" }
func IsTime(dataType string) bool     { return norm(dataType) == "time" }
func IsBit(dataType string) bool      { return norm(dataType) == "bit" }
func IsUUID(dataType string) bool     { return norm(dataType) == "uniqueidentifier" }

// IsRowVersion covers rowversion, which INFORMATION_SCHEMA reports as timestamp.
func IsRowVersion(dataType string) bool { return rowVersion[norm(dataType)] }

// IsTemporal reports date, time and date-time types.
func IsTemporal(dataType string) bool {
	return IsDateTime(dataType) || IsDate(dataType) || IsTime(dataType)
}

// IsOrderable reports whether a column can serve as a replication key.
func IsOrderable(dataType string) bool {
	return IsInteger(dataType) || IsDecimal(dataType) || IsMoney(dataType) || IsFloat(dataType) ||
		IsDateTime(dataType) || IsDate(dataType) || IsRowVersion(dataType)
}
