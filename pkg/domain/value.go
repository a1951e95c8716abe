package domain

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindString
	KindBinary
	KindDateTime
	KindObjectID
	KindArray
	KindDocument
)

var kindNames = map[Kind]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt32:    "int",
	KindInt64:    "long",
	KindDouble:   "double",
	KindString:   "string",
	KindBinary:   "binData",
	KindDateTime: "date",
	KindObjectID: "objectId",
	KindArray:    "array",
	KindDocument: "object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a type alias ("string", "long", "object", ...) to a Kind.
func ParseKind(alias string) (Kind, bool) {
	for k, name := range kindNames {
		if name == alias {
			return k, true
		}
	}
	switch alias {
	case "int32":
		return KindInt32, true
	case "int64":
		return KindInt64, true
	case "boolean":
		return KindBool, true
	case "binary":
		return KindBinary, true
	case "document":
		return KindDocument, true
	}
	return 0, false
}

// IsNumeric reports whether the kind is one of the numeric variants.
func (k Kind) IsNumeric() bool {
	return k == KindInt32 || k == KindInt64 || k == KindDouble
}

// Value is an immutable tagged union over every storable variant.
// The zero Value is Null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	bin  []byte
	oid  ObjectID
	arr  []Value
	doc  *Document
}

func Null() Value { return Value{} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

func Int32(n int32) Value { return Value{kind: KindInt32, i: int64(n)} }

func Int64(n int64) Value { return Value{kind: KindInt64, i: n} }

func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

func String(s string) Value { return Value{kind: KindString, s: s} }

// Binary copies b.
func Binary(b []byte) Value {
	return Value{kind: KindBinary, bin: append([]byte{}, b...)}
}

// DateTime stores t in UTC truncated to millisecond precision.
func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, i: t.UTC().UnixMilli()}
}

// DateTimeMillis builds a DateTime from milliseconds since the Unix epoch.
func DateTimeMillis(ms int64) Value {
	return Value{kind: KindDateTime, i: ms}
}

func OID(id ObjectID) Value { return Value{kind: KindObjectID, oid: id} }

// Array copies the element slice; elements themselves are immutable.
func Array(elems ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value{}, elems...)}
}

// Doc wraps a deep copy of d so later changes to d are not observed.
func Doc(d *Document) Value {
	if d == nil {
		d = NewDocument()
	}
	return Value{kind: KindDocument, doc: d.Clone()}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) BoolValue() (bool, bool) { return v.i == 1, v.kind == KindBool }

func (v Value) Int32Value() (int32, bool) { return int32(v.i), v.kind == KindInt32 }

func (v Value) Int64Value() (int64, bool) { return v.i, v.kind == KindInt64 }

func (v Value) DoubleValue() (float64, bool) { return v.f, v.kind == KindDouble }

func (v Value) StringValue() (string, bool) { return v.s, v.kind == KindString }

// BinaryValue returns a copy of the stored bytes.
func (v Value) BinaryValue() ([]byte, bool) {
	if v.kind != KindBinary {
		return nil, false
	}
	return append([]byte{}, v.bin...), true
}

func (v Value) DateTimeValue() (time.Time, bool) {
	if v.kind != KindDateTime {
		return time.Time{}, false
	}
	return time.UnixMilli(v.i).UTC(), true
}

// DateTimeMillis returns the stored instant as milliseconds since the epoch.
func (v Value) DateTimeMillis() (int64, bool) { return v.i, v.kind == KindDateTime }

func (v Value) ObjectIDValue() (ObjectID, bool) { return v.oid, v.kind == KindObjectID }

// ArrayValue returns a copy of the element slice.
func (v Value) ArrayValue() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return append([]Value{}, v.arr...), true
}

// Len returns the element count of an Array, the key count of a Document and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindDocument:
		return v.doc.Len()
	}
	return 0
}

// Index returns the i-th element of an Array.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}, false
	}
	return v.arr[i], true
}

// DocumentValue returns a copy of the embedded document.
func (v Value) DocumentValue() (*Document, bool) {
	if v.kind != KindDocument {
		return nil, false
	}
	return v.doc.Clone(), true
}

// Float64 converts any numeric variant to float64.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt32, KindInt64:
		return float64(v.i), true
	case KindDouble:
		return v.f, true
	}
	return 0, false
}

// Int64 converts any numeric variant to int64, truncating doubles.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt32, KindInt64:
		return v.i, true
	case KindDouble:
		return int64(v.f), true
	}
	return 0, false
}

// Equal is strict structural equality: the variants must match exactly, so
// Int32(1), Int64(1) and Double(1) are all distinct. Document key order is ignored.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool, KindInt32, KindInt64, KindDateTime:
		return v.i == other.i
	case KindDouble:
		return v.f == other.f || (math.IsNaN(v.f) && math.IsNaN(other.f))
	case KindString:
		return v.s == other.s
	case KindBinary:
		return bytes.Equal(v.bin, other.bin)
	case KindObjectID:
		return v.oid == other.oid
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindDocument:
		return v.doc.Equal(other.doc)
	}
	return false
}

// Matches is query equality: numeric variants are compared by value, everything
// else as in Equal, recursively.
func (v Value) Matches(other Value) bool {
	if v.kind.IsNumeric() && other.kind.IsNumeric() {
		return compareNumbers(v, other) == 0
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Matches(other.arr[i]) {
				return false
			}
		}
		return true
	case KindDocument:
		return v.doc.matches(other.doc)
	}
	return v.Equal(other)
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.i == 1)
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindBinary:
		return fmt.Sprintf("Binary(%x)", v.bin)
	case KindDateTime:
		return "Date(" + time.UnixMilli(v.i).UTC().Format(time.RFC3339Nano) + ")"
	case KindObjectID:
		return "ObjectID(" + v.oid.String() + ")"
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDocument:
		return v.doc.String()
	}
	return "?"
}
