package health

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
)

// Entry is the liveness of one dependency.
type Entry struct {
	Name string
	Up   bool
}

// Report is the outcome of one CheckHealth call. Entries keep the order in
// which their probes were registered.
type Report struct {
	entries []Entry
}

// NewReport builds a Report from entries in the given order.
func NewReport(entries ...Entry) Report {
	return Report{entries: append([]Entry(nil), entries...)}
}

// Entries returns a copy of the entries.
func (r Report) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Up returns the liveness recorded for name and whether it was probed.
func (r Report) Up(name string) (up, ok bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e.Up, true
		}
	}
	return false, false
}

// Healthy reports whether every dependency is up.
func (r Report) Healthy() bool {
	for _, e := range r.entries {
		if !e.Up {
			return false
		}
	}
	return true
}

// MarshalJSON renders the report as {"is<Name>Up": bool, ...} in entry
// order, e.g. "rabbit-mq" becomes "isRabbitMqUp".
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(JSONKey(e.Name))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if e.Up {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSONKey returns the report key for a dependency name.
func JSONKey(name string) string {
	var b strings.Builder
	b.WriteString("is")
	for _, part := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	}) {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	b.WriteString("Up")
	return b.String()
}
