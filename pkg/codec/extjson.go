package codec

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// BSON binary subtype used for 128-bit identifiers.
const uuidSubtype byte = 0x04

// ToBSON converts v into the driver's primitive representation so it can be
// rendered as Extended JSON. ObjectIDs become UUID-subtype binaries.
func ToBSON(v domain.Value) interface{} {
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
		return primitive.Binary{Subtype: bson.TypeBinaryGeneric, Data: b}
	case domain.KindDateTime:
		ms, _ := v.DateTimeMillis()
		return primitive.DateTime(ms)
	case domain.KindObjectID:
		id, _ := v.ObjectIDValue()
		return primitive.Binary{Subtype: uuidSubtype, Data: append([]byte{}, id[:]...)}
	case domain.KindArray:
		elems, _ := v.ArrayValue()
		out := make(bson.A, len(elems))
		for i, e := range elems {
			out[i] = ToBSON(e)
		}
		return out
	case domain.KindDocument:
		doc, _ := v.DocumentValue()
		return DocumentToBSON(doc)
	}
	return nil
}

// DocumentToBSON converts doc into an ordered bson.D.
func DocumentToBSON(doc *domain.Document) bson.D {
	out := make(bson.D, 0, doc.Len())
	for _, e := range doc.Elements() {
		out = append(out, bson.E{Key: e.Key, Value: ToBSON(e.Value)})
	}
	return out
}

// FromBSON converts a driver value produced by bson unmarshalling back into a Value.
func FromBSON(x interface{}) (domain.Value, error) {
	return fromBSON(x, "")
}

func fromBSON(x interface{}, path string) (domain.Value, error) {
	switch t := x.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return domain.Null(), nil
	case bool:
		return domain.Bool(t), nil
	case int32:
		return domain.Int32(t), nil
	case int64:
		return domain.Int64(t), nil
	case float64:
		return domain.Double(t), nil
	case string:
		return domain.String(t), nil
	case primitive.Binary:
		if t.Subtype == uuidSubtype && len(t.Data) == 16 {
			var id domain.ObjectID
			copy(id[:], t.Data)
			return domain.OID(id), nil
		}
		return domain.Binary(t.Data), nil
	case primitive.DateTime:
		return domain.DateTimeMillis(int64(t)), nil
	case primitive.A:
		elems := make([]domain.Value, len(t))
		for i, e := range t {
			ev, err := fromBSON(e, joinIndex(path, i))
			if err != nil {
				return domain.Value{}, err
			}
			elems[i] = ev
		}
		return domain.Array(elems...), nil
	case primitive.D:
		doc, err := documentFromBSON(t, path)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Doc(doc), nil
	case primitive.M:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(primitive.D, 0, len(t))
		for _, k := range keys {
			d = append(d, primitive.E{Key: k, Value: t[k]})
		}
		return fromBSON(d, path)
	}
	return domain.Value{}, domain.Errorf(domain.ErrUnsupportedType, path, "no mapping for BSON value %T", x)
}

// DocumentFromBSON converts an ordered bson.D into a Document.
func DocumentFromBSON(d bson.D) (*domain.Document, error) {
	return documentFromBSON(d, "")
}

func documentFromBSON(d bson.D, path string) (*domain.Document, error) {
	doc := domain.NewDocument()
	for _, e := range d {
		v, err := fromBSON(e.Value, joinPath(path, e.Key))
		if err != nil {
			return nil, err
		}
		doc.Set(e.Key, v)
	}
	return doc, nil
}

// MarshalExtJSON renders doc as MongoDB Extended JSON; canonical mode keeps
// every numeric width explicit.
func MarshalExtJSON(doc *domain.Document, canonical bool) ([]byte, error) {
	data, err := bson.MarshalExtJSON(DocumentToBSON(doc), canonical, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extended JSON: %w", err)
	}
	return data, nil
}

// UnmarshalExtJSON parses relaxed or canonical Extended JSON into a Document.
func UnmarshalExtJSON(data []byte) (*domain.Document, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, fmt.Errorf("failed to decode extended JSON: %w", err)
	}
	return DocumentFromBSON(d)
}
