package codec

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Decode stores v into the value pointed to by target.
//
// Numeric targets accept any numeric variant and convert with standard Go
// numeric conversion, so an Int64 decoded into an int32 narrows silently.
// A *any target always succeeds and receives the natural representation
// (see Natural).
func (r *Registry) Decode(v domain.Value, target any) error {
	switch t := target.(type) {
	case nil:
		return domain.Errorf(domain.ErrUnsupportedType, "", "decode target is nil")
	case *any:
		*t = Natural(v)
		return nil
	case *domain.Value:
		*t = v
		return nil
	case *bool:
		b, ok := v.BoolValue()
		if !ok {
			return mismatch(v, "bool")
		}
		*t = b
		return nil
	case *int32:
		n, ok := v.Int64()
		if !ok {
			return mismatch(v, "int32")
		}
		*t = int32(n)
		return nil
	case *int64:
		n, ok := v.Int64()
		if !ok {
			return mismatch(v, "int64")
		}
		*t = n
		return nil
	case *int:
		n, ok := v.Int64()
		if !ok {
			return mismatch(v, "int")
		}
		*t = int(n)
		return nil
	case *float64:
		f, ok := v.Float64()
		if !ok {
			return mismatch(v, "float64")
		}
		*t = f
		return nil
	case *float32:
		f, ok := v.Float64()
		if !ok {
			return mismatch(v, "float32")
		}
		*t = float32(f)
		return nil
	case *string:
		s, ok := v.StringValue()
		if !ok {
			return mismatch(v, "string")
		}
		*t = s
		return nil
	case *[]byte:
		b, ok := v.BinaryValue()
		if !ok {
			return mismatch(v, "[]byte")
		}
		*t = b
		return nil
	case *time.Time:
		ts, ok := v.DateTimeValue()
		if !ok {
			return mismatch(v, "time.Time")
		}
		*t = ts
		return nil
	case *domain.ObjectID:
		id, ok := v.ObjectIDValue()
		if !ok {
			return mismatch(v, "ObjectID")
		}
		*t = id
		return nil
	case *uuid.UUID:
		id, ok := v.ObjectIDValue()
		if !ok {
			return mismatch(v, "uuid.UUID")
		}
		*t = id.UUID()
		return nil
	case *[]any:
		elems, ok := v.ArrayValue()
		if !ok {
			return mismatch(v, "[]any")
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = Natural(e)
		}
		*t = out
		return nil
	case *[]domain.Value:
		elems, ok := v.ArrayValue()
		if !ok {
			return mismatch(v, "[]Value")
		}
		*t = elems
		return nil
	case *[]string:
		elems, ok := v.ArrayValue()
		if !ok {
			return mismatch(v, "[]string")
		}
		out := make([]string, len(elems))
		for i, e := range elems {
			s, ok := e.StringValue()
			if !ok {
				return mismatch(e, "string")
			}
			out[i] = s
		}
		*t = out
		return nil
	case *map[string]any:
		doc, ok := v.DocumentValue()
		if !ok {
			return mismatch(v, "map[string]any")
		}
		out := make(map[string]any, doc.Len())
		for _, e := range doc.Elements() {
			out[e.Key] = Natural(e.Value)
		}
		*t = out
		return nil
	case *domain.Document:
		doc, ok := v.DocumentValue()
		if !ok {
			return mismatch(v, "Document")
		}
		*t = *doc
		return nil
	case **domain.Document:
		doc, ok := v.DocumentValue()
		if !ok {
			return mismatch(v, "*Document")
		}
		*t = doc
		return nil
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return domain.Errorf(domain.ErrUnsupportedType, "", "decode target must be a non-nil pointer, got %T", target)
	}
	dec, ok := r.decoder(rv.Type().Elem())
	if !ok {
		return domain.Errorf(domain.ErrUnsupportedType, "", "no codec registered for %s", rv.Type().Elem())
	}
	out, err := dec(v)
	if err != nil {
		return err
	}
	rv.Elem().Set(reflect.ValueOf(out))
	return nil
}

// Natural returns the representation a Value decodes to when no target type is
// requested: nil, bool, int32, int64, float64, string, []byte, time.Time,
// domain.ObjectID, []any for arrays and *domain.Document for documents.
func Natural(v domain.Value) any {
	switch v.Kind() {
	case domain.KindBool:
		b, _ := v.BoolValue()
		return b
	case domain.KindInt32:
		n, _ := v.Int32Value()
		return n
	case domain.KindInt64:
		n, _ := v.Int64Value()
		return n
	case domain.KindDouble:
		f, _ := v.DoubleValue()
		return f
	case domain.KindString:
		s, _ := v.StringValue()
		return s
	case domain.KindBinary:
		b, _ := v.BinaryValue()
		return b
	case domain.KindDateTime:
		t, _ := v.DateTimeValue()
		return t
	case domain.KindObjectID:
		id, _ := v.ObjectIDValue()
		return id
	case domain.KindArray:
		elems, _ := v.ArrayValue()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = Natural(e)
		}
		return out
	case domain.KindDocument:
		doc, _ := v.DocumentValue()
		return doc
	}
	return nil
}

// Get decodes the value at a dotted path of doc into a T.
// A missing path yields domain.ErrNotFound.
func Get[T any](doc *domain.Document, path string) (T, error) {
	var out T
	v, ok := doc.Lookup(path)
	if !ok {
		return out, domain.Errorf(domain.ErrNotFound, path, "field is missing")
	}
	if err := Decode(v, &out); err != nil {
		return out, withPath(err, path)
	}
	return out, nil
}

func mismatch(v domain.Value, target string) error {
	return domain.Errorf(domain.ErrTypeMismatch, "", "cannot decode %s into %s", v.Kind(), target)
}

func withPath(err error, path string) error {
	if e, ok := err.(*domain.Error); ok && e.Path == "" {
		return &domain.Error{Kind: e.Kind, Path: path, Detail: e.Detail}
	}
	return err
}
