package usecase

import (
	"encoding/json"
	"strings"

	"github.com/naka-gawa/tap-mssql/internal/domain"
	"github.com/naka-gawa/tap-mssql/internal/gateway"
)

// integerRanges bounds each integer width for high definition schemas.
var integerRanges = map[string][2]json.Number{
	"tinyint":  {"0", "255"},
	"smallint": {"-32768", "32767"},
	"int":      {"-2147483648", "2147483647"},
	"bigint":   {"-9223372036854775808", "9223372036854775807"},
}

var moneyRanges = map[string][2]json.Number{
	"smallmoney": {"-214748.3648", "214748.3647"},
	"money":      {"-922337203685477.5808", "922337203685477.5807"},
}

const moneyScale json.Number = "0.0001"

func ptr[T any](v T) *T { return &v }

// decimalLimit is the largest decimal(precision, scale) value, 10^(p-s) - 10^-s,
// written out digit by digit.
func decimalLimit(precision, scale int) json.Number {
	digits := "0"
	if precision > scale {
		digits = strings.Repeat("9", precision-scale)
	}
	if scale > 0 {
		digits += "." + strings.Repeat("9", scale)
	}
	return json.Number(digits)
}

// decimalStep is 10^-scale.
func decimalStep(scale int) json.Number {
	return json.Number("0." + strings.Repeat("0", scale-1) + "1")
}

// JSONSchemaFor maps a SQL Server column to its JSON schema. With hd set
// the schema also carries numeric ranges, multipleOf and maxLength.
func JSONSchemaFor(col gateway.Column, hd bool) *domain.Schema {
	dt := col.DataType
	s := &domain.Schema{}

	switch {
	case gateway.IsInteger(dt):
		s.Type = domain.TypeList{"integer"}
		if r, ok := integerRanges[strings.ToLower(dt)]; ok && hd {
			s.Minimum, s.Maximum = ptr(r[0]), ptr(r[1])
		}
	case gateway.IsDecimal(dt):
		scale := deref(col.NumericScale)
		if scale == 0 {
			s.Type = domain.TypeList{"integer"}
		} else {
			s.Type = domain.TypeList{"number"}
		}
		if precision := deref(col.NumericPrecision); hd && precision > 0 {
			limit := decimalLimit(int(precision), int(scale))
			s.Minimum, s.Maximum = ptr("-"+limit), ptr(limit)
			if scale > 0 {
				s.MultipleOf = ptr(decimalStep(int(scale)))
			}
		}
	case gateway.IsMoney(dt):
		s.Type = domain.TypeList{"number"}
		if hd {
			r := moneyRanges[strings.ToLower(dt)]
			s.Minimum, s.Maximum = ptr(r[0]), ptr(r[1])
			s.MultipleOf = ptr(moneyScale)
		}
	case gateway.IsFloat(dt):
		s.Type = domain.TypeList{"number"}
	case gateway.IsBit(dt):
		s.Type = domain.TypeList{"boolean"}
	case gateway.IsDate(dt):
		s.Type = domain.TypeList{"string"}
		s.Format = "date"
	case gateway.IsTime(dt):
		s.Type = domain.TypeList{"string"}
		s.Format = "time"
	case gateway.IsDateTime(dt):
		s.Type = domain.TypeList{"string"}
		s.Format = "date-time"
	case gateway.IsBinary(dt):
		s.Type = domain.TypeList{"string"}
		s.ContentEncoding = "base64"
	case gateway.IsUUID(dt):
		s.Type = domain.TypeList{"string"}
		s.Format = "uuid"
	default:
		// character types, rowversion, xml, spatial, sql_variant
		s.Type = domain.TypeList{"string"}
		if n := deref(col.CharMaxLength); hd && n > 0 && gateway.IsString(dt) {
			s.MaxLength = ptr(int(n))
		}
	}

	if col.Nullable() {
		s.Type = append(s.Type, "null")
	}
	return s
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
