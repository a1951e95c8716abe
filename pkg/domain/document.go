package domain

import (
	"strconv"
	"strings"
)

// IDField is the reserved primary-key field of every stored document.
const IDField = "_id"

// E is a single key/value pair used to build documents in order.
type E struct {
	Key   string
	Value Value
}

// Document is an ordered mapping of unique string keys to Values.
// Insertion order is kept for serialization; equality ignores it.
type Document struct {
	keys   []string
	values map[string]Value
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]Value)}
}

// D builds a document from pairs; a repeated key overwrites the earlier value in place.
func D(pairs ...E) *Document {
	d := NewDocument()
	for _, p := range pairs {
		d.Set(p.Key, p.Value)
	}
	return d
}

// Len returns the number of keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	return append([]string{}, d.keys...)
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	if d == nil {
		return false
	}
	_, ok := d.values[key]
	return ok
}

// Get returns the top-level value stored under key.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	v, ok := d.values[key]
	return v, ok
}

// GetOr returns the value under key, or def when the key is absent.
func (d *Document) GetOr(key string, def Value) Value {
	if v, ok := d.Get(key); ok {
		return v
	}
	return def
}

// Set stores v under key, appending the key when it is new.
func (d *Document) Set(key string, v Value) *Document {
	if d.values == nil {
		d.values = make(map[string]Value)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
	return d
}

// Delete removes key and reports whether it was present.
func (d *Document) Delete(key string) bool {
	if _, ok := d.values[key]; !ok {
		return false
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return true
}

// Elements returns the pairs in insertion order.
func (d *Document) Elements() []E {
	if d == nil {
		return nil
	}
	out := make([]E, len(d.keys))
	for i, k := range d.keys {
		out[i] = E{Key: k, Value: d.values[k]}
	}
	return out
}

// Clone returns a copy that shares no mutable state with d.
// Values are immutable, so only nested documents need copying.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		keys:   append([]string{}, d.keys...),
		values: make(map[string]Value, len(d.values)),
	}
	for k, v := range d.values {
		c.values[k] = v
	}
	return c
}

// Equal compares documents key-wise with strict Value equality.
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	for _, k := range d.Keys() {
		ov, ok := other.Get(k)
		if !ok {
			return false
		}
		if v, _ := d.Get(k); !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (d *Document) matches(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	for _, k := range d.keys {
		ov, ok := other.values[k]
		if !ok || !d.values[k].Matches(ov) {
			return false
		}
	}
	return true
}

// ID returns the document's _id value.
func (d *Document) ID() (Value, bool) {
	return d.Get(IDField)
}

func (d *Document) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range d.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(k))
		sb.WriteString(": ")
		v, _ := d.Get(k)
		sb.WriteString(v.String())
	}
	sb.WriteString("}")
	return sb.String()
}
