package sqlbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	appErr "gavel/pkg/errors"
)

// Row is one normalized result row keyed by lowercase column name.
type Row map[string]interface{}

const timestampLayout = "2006-01-02 15:04:05"

// timestampInputLayouts are the raw forms the driver or an authored expected
// row may carry. All collapse to timestampLayout.
var timestampInputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeValue collapses driver and authoring representation differences.
// Numbers round to four decimal places, timestamps render in a single
// layout, strings are trimmed, NULL stays nil.
func NormalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return x
	case int:
		return normalizeFloat(float64(x))
	case int32:
		return normalizeFloat(float64(x))
	case int64:
		return normalizeFloat(float64(x))
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return strings.TrimSpace(x.String())
	case time.Time:
		return x.Format(timestampLayout)
	case []byte:
		return normalizeString(string(x))
	case string:
		return normalizeString(x)
	default:
		return normalizeString(fmt.Sprintf("%v", x))
	}
}

func normalizeFloat(f float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 4, 64), 64)
	if err != nil {
		return f
	}
	return rounded
}

func normalizeString(s string) interface{} {
	s = strings.TrimSpace(s)
	if t, ok := parseTimestamp(s); ok {
		return t.Format(timestampLayout)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return normalizeFloat(f)
	}
	return s
}

func parseTimestamp(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02") {
		return time.Time{}, false
	}
	for _, layout := range timestampInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeRow lowercases column names and normalizes every value.
func NormalizeRow(in map[string]interface{}) Row {
	out := make(Row, len(in))
	for col, v := range in {
		out[strings.ToLower(strings.TrimSpace(col))] = NormalizeValue(v)
	}
	return out
}

// NormalizeRows normalizes a full result set. When orderMatters is false the
// rows are sorted by their canonical encoding so row order cannot affect the
// comparison.
func NormalizeRows(in []map[string]interface{}, orderMatters bool) ([]Row, error) {
	rows := make([]Row, len(in))
	for i, r := range in {
		rows[i] = NormalizeRow(r)
	}
	if !orderMatters {
		keys := make([]string, len(rows))
		for i, r := range rows {
			enc, err := canonicalRow(r)
			if err != nil {
				return nil, err
			}
			keys[i] = enc
		}
		sort.Sort(&rowSorter{rows: rows, keys: keys})
	}
	return rows, nil
}

type rowSorter struct {
	rows []Row
	keys []string
}

func (s *rowSorter) Len() int           { return len(s.rows) }
func (s *rowSorter) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s *rowSorter) Swap(i, j int) {
	s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

// canonicalRow encodes one row with sorted keys so equal rows always encode
// to equal bytes.
func canonicalRow(r Row) (string, error) {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return "", appErr.Wrapf(err, appErr.JudgeSystemError, "encode column name")
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r[c])
		if err != nil {
			return "", appErr.Wrapf(err, appErr.JudgeSystemError, "encode column value")
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// CanonicalJSON encodes a normalized result set deterministically. Two result
// sets are equal exactly when their canonical encodings are byte equal.
func CanonicalJSON(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		enc, err := canonicalRow(r)
		if err != nil {
			return nil, err
		}
		buf.WriteString(enc)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// CompareRows normalizes both result sets and reports whether they are
// equivalent under the normalization rules.
func CompareRows(expected, actual []map[string]interface{}, orderMatters bool) (bool, error) {
	if len(expected) != len(actual) {
		return false, nil
	}
	normExpected, err := NormalizeRows(expected, orderMatters)
	if err != nil {
		return false, err
	}
	normActual, err := NormalizeRows(actual, orderMatters)
	if err != nil {
		return false, err
	}
	encExpected, err := CanonicalJSON(normExpected)
	if err != nil {
		return false, err
	}
	encActual, err := CanonicalJSON(normActual)
	if err != nil {
		return false, err
	}
	return bytes.Equal(encExpected, encActual), nil
}
