package vector

import (
	"fmt"
	"strings"
)

// Filter selects records by their metadata. A nil Filter matches every record.
type Filter interface {
	Match(md map[string]string) bool
	String() string
}

// Matches reports whether md satisfies f, treating a nil filter as match-all.
func Matches(f Filter, md map[string]string) bool {
	if f == nil {
		return true
	}
	return f.Match(md)
}

// Eq matches records whose Key equals Value.
type Eq struct{ Key, Value string }

func (f Eq) Match(md map[string]string) bool {
	v, ok := md[f.Key]
	return ok && v == f.Value
}

func (f Eq) String() string { return fmt.Sprintf("%s == %q", f.Key, f.Value) }

// Ne matches records whose Key is absent or differs from Value.
type Ne struct{ Key, Value string }

func (f Ne) Match(md map[string]string) bool {
	return md[f.Key] != f.Value
}

func (f Ne) String() string { return fmt.Sprintf("%s != %q", f.Key, f.Value) }

// In matches records whose Key is one of Values.
type In struct {
	Key    string
	Values []string
}

func (f In) Match(md map[string]string) bool {
	v, ok := md[f.Key]
	if !ok {
		return false
	}
	for _, want := range f.Values {
		if v == want {
			return true
		}
	}
	return false
}

func (f In) String() string { return fmt.Sprintf("%s in %q", f.Key, f.Values) }

// Gte matches records whose Key compares >= Value as a string. ISO dates order correctly.
type Gte struct{ Key, Value string }

func (f Gte) Match(md map[string]string) bool {
	v, ok := md[f.Key]
	return ok && v >= f.Value
}

func (f Gte) String() string { return fmt.Sprintf("%s >= %q", f.Key, f.Value) }

// Lte matches records whose Key compares <= Value as a string.
type Lte struct{ Key, Value string }

func (f Lte) Match(md map[string]string) bool {
	v, ok := md[f.Key]
	return ok && v <= f.Value
}

func (f Lte) String() string { return fmt.Sprintf("%s <= %q", f.Key, f.Value) }

// Contains matches records whose Key contains Substr.
type Contains struct{ Key, Substr string }

func (f Contains) Match(md map[string]string) bool {
	v, ok := md[f.Key]
	return ok && strings.Contains(v, f.Substr)
}

func (f Contains) String() string { return fmt.Sprintf("%s contains %q", f.Key, f.Substr) }

// And matches when every member matches. An empty And matches everything.
type And []Filter

func (f And) Match(md map[string]string) bool {
	for _, sub := range f {
		if !Matches(sub, md) {
			return false
		}
	}
	return true
}

func (f And) String() string { return join(f, " AND ") }

// Or matches when any member matches. An empty Or matches nothing.
type Or []Filter

func (f Or) Match(md map[string]string) bool {
	for _, sub := range f {
		if Matches(sub, md) {
			return true
		}
	}
	return false
}

func (f Or) String() string { return join(f, " OR ") }

func join(fs []Filter, sep string) string {
	parts := make([]string, len(fs))
	for i, sub := range fs {
		if sub == nil {
			parts[i] = "*"
			continue
		}
		parts[i] = sub.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Describe renders f for logs.
func Describe(f Filter) string {
	if f == nil {
		return "*"
	}
	return f.String()
}
