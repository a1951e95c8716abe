// Package codec converts native Go values to and from domain Values.
//
// Encoding is a total function over a fixed set of built-in types plus whatever
// handlers have been registered on a Registry. The built-in coercion rules are:
//
//   - int8, int16, int32, uint8, uint16 encode as Int32; int, int64, uint32 as Int64;
//     uint and uint64 as Int64 when they fit, otherwise the value is rejected.
//   - float32 and float64 encode as Double.
//   - []byte encodes as Binary; []any, []string and []domain.Value encode as Array.
//     Slices and arrays of any other element type (e.g. []int, [3]int) are rejected.
//   - map[string]any and map[string]string silently become sub-documents with their
//     keys in sorted order.
//   - time.Time encodes as a millisecond-precision UTC DateTime.
//   - domain.ObjectID and uuid.UUID encode as ObjectID.
//
// Anything else fails with domain.ErrUnsupportedType unless a handler is registered.
package codec

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Registry holds conversions for native types that have no built-in mapping.
type Registry struct {
	mu       sync.RWMutex
	encoders map[reflect.Type]func(any) (domain.Value, error)
	decoders map[reflect.Type]func(domain.Value) (any, error)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		encoders: make(map[reflect.Type]func(any) (domain.Value, error)),
		decoders: make(map[reflect.Type]func(domain.Value) (any, error)),
	}
}

// DefaultRegistry is used by the package-level Encode and Decode.
var DefaultRegistry = NewRegistry()

// Register installs the conversion pair for T on r, replacing any previous one.
func Register[T any](r *Registry, enc func(T) (domain.Value, error), dec func(domain.Value) (T, error)) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[typ] = func(v any) (domain.Value, error) { return enc(v.(T)) }
	r.decoders[typ] = func(v domain.Value) (any, error) { return dec(v) }
}

func (r *Registry) encoder(typ reflect.Type) (func(any) (domain.Value, error), bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.encoders[typ]
	return fn, ok
}

func (r *Registry) decoder(typ reflect.Type) (func(domain.Value) (any, error), bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.decoders[typ]
	return fn, ok
}

// Encode converts v using DefaultRegistry.
func Encode(v any) (domain.Value, error) {
	return DefaultRegistry.Encode(v)
}

// Decode converts v into target using DefaultRegistry.
func Decode(v domain.Value, target any) error {
	return DefaultRegistry.Decode(v, target)
}

// Encode converts a native value into a domain.Value.
func (r *Registry) Encode(v any) (domain.Value, error) {
	return r.encode(v, "")
}

// EncodeDocument converts a native value that must map to a document.
func (r *Registry) EncodeDocument(v any) (*domain.Document, error) {
	val, err := r.encode(v, "")
	if err != nil {
		return nil, err
	}
	doc, ok := val.DocumentValue()
	if !ok {
		return nil, domain.Errorf(domain.ErrUnsupportedType, "", "%T does not encode to a document", v)
	}
	return doc, nil
}

func (r *Registry) encode(v any, path string) (domain.Value, error) {
	switch x := v.(type) {
	case nil:
		return domain.Null(), nil
	case domain.Value:
		return x, nil
	case *domain.Document:
		return domain.Doc(x), nil
	case bool:
		return domain.Bool(x), nil
	case int8:
		return domain.Int32(int32(x)), nil
	case int16:
		return domain.Int32(int32(x)), nil
	case int32:
		return domain.Int32(x), nil
	case uint8:
		return domain.Int32(int32(x)), nil
	case uint16:
		return domain.Int32(int32(x)), nil
	case int:
		return domain.Int64(int64(x)), nil
	case int64:
		return domain.Int64(x), nil
	case uint32:
		return domain.Int64(int64(x)), nil
	case uint:
		return encodeUint(uint64(x), path)
	case uint64:
		return encodeUint(x, path)
	case float32:
		return domain.Double(float64(x)), nil
	case float64:
		return domain.Double(x), nil
	case string:
		return domain.String(x), nil
	case []byte:
		return domain.Binary(x), nil
	case time.Time:
		return domain.DateTime(x), nil
	case domain.ObjectID:
		return domain.OID(x), nil
	case uuid.UUID:
		return domain.OID(domain.ObjectID(x)), nil
	case []domain.Value:
		return domain.Array(x...), nil
	case []string:
		elems := make([]domain.Value, len(x))
		for i, s := range x {
			elems[i] = domain.String(s)
		}
		return domain.Array(elems...), nil
	case []any:
		elems := make([]domain.Value, len(x))
		for i, e := range x {
			ev, err := r.encode(e, joinIndex(path, i))
			if err != nil {
				return domain.Value{}, err
			}
			elems[i] = ev
		}
		return domain.Array(elems...), nil
	case map[string]any:
		doc := domain.NewDocument()
		for _, k := range sortedKeys(x) {
			ev, err := r.encode(x[k], joinPath(path, k))
			if err != nil {
				return domain.Value{}, err
			}
			doc.Set(k, ev)
		}
		return domain.Doc(doc), nil
	case map[string]string:
		doc := domain.NewDocument()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			doc.Set(k, domain.String(x[k]))
		}
		return domain.Doc(doc), nil
	}

	if enc, ok := r.encoder(reflect.TypeOf(v)); ok {
		return enc(v)
	}
	return domain.Value{}, domain.Errorf(domain.ErrUnsupportedType, path, "no codec registered for %T", v)
}

func encodeUint(u uint64, path string) (domain.Value, error) {
	if u > math.MaxInt64 {
		return domain.Value{}, domain.Errorf(domain.ErrUnsupportedType, path, "unsigned value %d overflows int64", u)
	}
	return domain.Int64(int64(u)), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func joinIndex(path string, i int) string {
	return joinPath(path, strconv.Itoa(i))
}
