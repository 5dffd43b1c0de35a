package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NullFloat is a numeric field that may be absent. Scraped sources disagree on
// whether ratings and scores are numbers, strings or missing entirely, so any
// value that does not parse to a finite number decodes as absent instead of
// failing the whole record.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float returns a valid NullFloat holding f.
func Float(f float64) NullFloat {
	return NullFloat{Float64: f, Valid: true}
}

// ParseNullFloat converts a loosely typed value into a NullFloat.
func ParseNullFloat(v any) NullFloat {
	switch t := v.(type) {
	case nil:
		return NullFloat{}
	case NullFloat:
		return t
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return Float(float64(t))
	case int64:
		return Float(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return NullFloat{}
		}
		return finite(f)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return NullFloat{}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return NullFloat{}
		}
		return finite(f)
	}
	return NullFloat{}
}

func finite(f float64) NullFloat {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NullFloat{}
	}
	return Float(f)
}

// OrZero returns the value, or 0 when absent.
func (n NullFloat) OrZero() float64 {
	if !n.Valid {
		return 0
	}
	return n.Float64
}

// String formats the value for CSV output; absent values are empty.
func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// UnmarshalJSON implements json.Unmarshaler. It never returns an error for a
// malformed value; the field is simply left absent.
func (n *NullFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = NullFloat{}
		return nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		*n = NullFloat{}
		return nil
	}
	*n = ParseNullFloat(v)
	return nil
}

// Value implements the driver.Valuer interface so absent values are stored as NULL.
func (n NullFloat) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Float64, nil
}

// Scan implements the sql.Scanner interface.
func (n *NullFloat) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*n = NullFloat{}
	case []byte:
		*n = ParseNullFloat(string(v))
	default:
		*n = ParseNullFloat(v)
	}
	return nil
}
