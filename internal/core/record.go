package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RawRecord is one row of the grouped census query as returned by the API,
// tagged with the borough it was fetched for. The API omits null columns,
// so every field is optional.
type RawRecord struct {
	Borough Borough   `json:"boroname"`
	Species *string   `json:"spc_common,omitempty"`
	Health  *string   `json:"health,omitempty"`
	Steward *string   `json:"steward,omitempty"`
	Count   NullCount `json:"count_tree_id"`
}

// NullCount decodes a count that may arrive as a JSON number, a numeric
// string, or null. Null decodes to Valid=false and counts as zero.
type NullCount struct {
	Value int64
	Valid bool
}

func (c *NullCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = NullCount{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*c = NullCount{}
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return fmt.Errorf("parse count %q: %w", string(data), err)
		}
		n = int64(f)
	}
	*c = NullCount{Value: n, Valid: true}
	return nil
}

func (c NullCount) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(strconv.FormatInt(c.Value, 10))), nil
}

// Int64 returns the count, treating null as zero.
func (c NullCount) Int64() int64 {
	if !c.Valid {
		return 0
	}
	return c.Value
}

// Count builds a valid NullCount.
func Count(n int64) NullCount { return NullCount{Value: n, Valid: true} }

// Str returns a pointer to s, for building RawRecords by hand.
func Str(s string) *string { return &s }

// Field returns the trimmed value of an optional column and whether it is present.
func Field(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	v := strings.TrimSpace(*p)
	return v, v != ""
}
