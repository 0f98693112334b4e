package expression

import "strings"

// Option is a single key=value pair on an expression term.
type Option struct {
	Key   string
	Value string
}

// Options is an immutable, ordered set of options. Insertion order is the
// render order. The zero value is empty and ready to use.
type Options struct {
	items []Option
}

// NewOptions builds Options from pairs. A later duplicate key replaces the
// earlier value in place.
func NewOptions(pairs ...Option) Options {
	var o Options
	for _, p := range pairs {
		o = o.With(p.Key, p.Value)
	}
	return o
}

// Len returns the number of options.
func (o Options) Len() int { return len(o.items) }

// Get returns the value stored under key.
func (o Options) Get(key string) (string, bool) {
	for _, it := range o.items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return "", false
}

// All returns a copy of the options in order.
func (o Options) All() []Option {
	out := make([]Option, len(o.items))
	copy(out, o.items)
	return out
}

// Map returns the options as a map.
func (o Options) Map() map[string]string {
	m := make(map[string]string, len(o.items))
	for _, it := range o.items {
		m[it.Key] = it.Value
	}
	return m
}

// With returns a copy of o with key set to value. An existing key keeps its
// position; a new key is appended.
func (o Options) With(key, value string) Options {
	items := make([]Option, len(o.items), len(o.items)+1)
	copy(items, o.items)
	for i := range items {
		if items[i].Key == key {
			items[i].Value = value
			return Options{items: items}
		}
	}
	return Options{items: append(items, Option{Key: key, Value: value})}
}

// Filter returns the options whose keys appear in keys, in stored order.
func (o Options) Filter(keys []string) Options {
	var out []Option
	for _, it := range o.items {
		for _, k := range keys {
			if it.Key == k {
				out = append(out, it)
				break
			}
		}
	}
	return Options{items: out}
}

// Equal reports whether o and other hold the same pairs in the same order.
func (o Options) Equal(other Options) bool {
	if len(o.items) != len(other.items) {
		return false
	}
	for i := range o.items {
		if o.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

func (o Options) render(b *strings.Builder) {
	if len(o.items) == 0 {
		return
	}
	b.WriteByte('(')
	for i, it := range o.items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(it.Key)
		b.WriteByte('=')
		writeValue(b, it.Value)
	}
	b.WriteByte(')')
}

func writeValue(b *strings.Builder, v string) {
	if isBareword(v) {
		b.WriteString(v)
		return
	}
	b.WriteByte('"')
	for i := 0; i < len(v); i++ {
		if v[i] == '"' || v[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(v[i])
	}
	b.WriteByte('"')
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '.' || c == '-'
}

func isBarewordByte(c byte) bool {
	if isIdentByte(c) {
		return true
	}
	switch c {
	case '/', ':', '@', '+', '~':
		return true
	}
	return false
}

func isBareword(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		if !isBarewordByte(v[i]) {
			return false
		}
	}
	return true
}

// IsIdentifier reports whether s can name a repository, project space,
// editor or option key.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}
