// internal/compiler/format.go
package compiler

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeLayout = "3:04 PM"
	DefaultDateLayout = "Monday, January 2"
)

type dateKind int

const (
	notDate dateKind = iota
	timeOfDay
	calendarDate
)

func classifyField(field string) dateKind {
	f := strings.ToLower(field)
	switch {
	case f == "date" || strings.HasSuffix(f, "_date"):
		return calendarDate
	case f == "start_at" || f == "end_at",
		strings.HasSuffix(f, "_start"),
		strings.HasSuffix(f, "_end"),
		strings.HasSuffix(f, "_at"):
		return timeOfDay
	default:
		return notDate
	}
}

// scalarText renders a leaf value. ok is false for containers and nil.
func scalarText(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.Format(time.RFC3339), true
	case nil:
		return "", false
	default:
		if isContainer(v) {
			return "", false
		}
		return fmt.Sprint(v), true
	}
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339, zoneless ISO strings (read in loc) and unix seconds or milliseconds.
// Numbers below minEpochSeconds are rejected.
func parseTime(v interface{}, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts, true
		}
		for _, layout := range zonelessLayouts {
			if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return unixTime(n)
		}
		return time.Time{}, false
	case float64:
		if t != math.Trunc(t) {
			return time.Time{}, false
		}
		return unixTime(int64(t))
	case int64:
		return unixTime(t)
	case int:
		return unixTime(int64(t))
	default:
		return time.Time{}, false
	}
}

// minEpochSeconds is 2001-09-09. Smaller numbers in a date-named field are counts, not times.
const minEpochSeconds = 1e9

func unixTime(n int64) (time.Time, bool) {
	switch {
	case n > 1e12:
		return time.UnixMilli(n), true
	case n >= minEpochSeconds:
		return time.Unix(n, 0), true
	default:
		return time.Time{}, false
	}
}

type layoutToken struct {
	pattern string
	layout  string
}

// Longest tokens first so "MMMM" wins over "MM".
var directiveTokens = []layoutToken{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"dddd", "Monday"},
	{"MMM", "Jan"},
	{"ddd", "Mon"},
	{"YY", "06"},
	{"MM", "01"},
	{"Do", ""},
	{"DD", "02"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"M", "1"},
	{"D", "2"},
	{"H", "15"},
	{"h", "3"},
	{"m", "4"},
	{"s", "5"},
	{"A", "PM"},
	{"a", "pm"},
}

// formatDirective renders t using moment-style tokens. Text inside [brackets] is literal.
// Each token is formatted on its own so literal digits in the directive survive.
func formatDirective(t time.Time, directive string) string {
	var b strings.Builder
	for i := 0; i < len(directive); {
		if directive[i] == '[' {
			if end := strings.IndexByte(directive[i:], ']'); end > 0 {
				b.WriteString(directive[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, tok := range directiveTokens {
			if strings.HasPrefix(directive[i:], tok.pattern) {
				if tok.pattern == "Do" {
					b.WriteString(ordinal(t.Day()))
				} else {
					b.WriteString(t.Format(tok.layout))
				}
				i += len(tok.pattern)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(directive[i])
			i++
		}
	}
	return b.String()
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}

// locationFrom reads the site time zone from the data root.
func locationFrom(data map[string]interface{}) *time.Location {
	for _, key := range []string{"site_time_zone", "timezone"} {
		name, ok := data[key].(string)
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		if loc, err := time.LoadLocation(strings.TrimSpace(name)); err == nil {
			return loc
		}
	}
	return time.UTC
}
