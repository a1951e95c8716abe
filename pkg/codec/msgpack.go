package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// WireValue is the msgpack form of a Value: a kind tag plus the one payload
// field that kind uses.
type WireValue struct {
	K uint8       `msgpack:"k"`
	I int64       `msgpack:"i,omitempty"`
	F float64     `msgpack:"f,omitempty"`
	S string      `msgpack:"s,omitempty"`
	B []byte      `msgpack:"b,omitempty"`
	A []WireValue `msgpack:"a,omitempty"`
	D WireDoc     `msgpack:"d,omitempty"`
}

// WireField is one ordered document entry.
type WireField struct {
	K string    `msgpack:"k"`
	V WireValue `msgpack:"v"`
}

// WireDoc is the msgpack form of a Document, keeping key order.
type WireDoc []WireField

// ToWire converts doc to its wire form.
func ToWire(doc *domain.Document) WireDoc {
	out := make(WireDoc, 0, doc.Len())
	for _, e := range doc.Elements() {
		out = append(out, WireField{K: e.Key, V: toWireValue(e.Value)})
	}
	return out
}

func toWireValue(v domain.Value) WireValue {
	w := WireValue{K: uint8(v.Kind())}
	switch v.Kind() {
	case domain.KindBool:
		if b, _ := v.BoolValue(); b {
			w.I = 1
		}
	case domain.KindInt32, domain.KindInt64:
		w.I, _ = v.Int64()
	case domain.KindDateTime:
		w.I, _ = v.DateTimeMillis()
	case domain.KindDouble:
		w.F, _ = v.DoubleValue()
	case domain.KindString:
		w.S, _ = v.StringValue()
	case domain.KindBinary:
		w.B, _ = v.BinaryValue()
	case domain.KindObjectID:
		id, _ := v.ObjectIDValue()
		w.B = append([]byte{}, id[:]...)
	case domain.KindArray:
		elems, _ := v.ArrayValue()
		w.A = make([]WireValue, len(elems))
		for i, e := range elems {
			w.A[i] = toWireValue(e)
		}
	case domain.KindDocument:
		doc, _ := v.DocumentValue()
		w.D = ToWire(doc)
	}
	return w
}

// FromWire rebuilds a Document from its wire form.
func FromWire(w WireDoc) (*domain.Document, error) {
	doc := domain.NewDocument()
	for _, f := range w {
		v, err := fromWireValue(f.V)
		if err != nil {
			return nil, err
		}
		doc.Set(f.K, v)
	}
	return doc, nil
}

func fromWireValue(w WireValue) (domain.Value, error) {
	switch domain.Kind(w.K) {
	case domain.KindNull:
		return domain.Null(), nil
	case domain.KindBool:
		return domain.Bool(w.I == 1), nil
	case domain.KindInt32:
		return domain.Int32(int32(w.I)), nil
	case domain.KindInt64:
		return domain.Int64(w.I), nil
	case domain.KindDouble:
		return domain.Double(w.F), nil
	case domain.KindString:
		return domain.String(w.S), nil
	case domain.KindBinary:
		return domain.Binary(w.B), nil
	case domain.KindDateTime:
		return domain.DateTimeMillis(w.I), nil
	case domain.KindObjectID:
		if len(w.B) != 16 {
			return domain.Value{}, fmt.Errorf("invalid object id length %d", len(w.B))
		}
		var id domain.ObjectID
		copy(id[:], w.B)
		return domain.OID(id), nil
	case domain.KindArray:
		elems := make([]domain.Value, len(w.A))
		for i, e := range w.A {
			v, err := fromWireValue(e)
			if err != nil {
				return domain.Value{}, err
			}
			elems[i] = v
		}
		return domain.Array(elems...), nil
	case domain.KindDocument:
		doc, err := FromWire(w.D)
		if err != nil {
			return domain.Value{}, err
		}
		return domain.Doc(doc), nil
	}
	return domain.Value{}, fmt.Errorf("unknown value kind %d", w.K)
}

// MarshalMsgpack encodes doc with MessagePack.
func MarshalMsgpack(doc *domain.Document) ([]byte, error) {
	data, err := msgpack.Marshal(ToWire(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	return data, nil
}

// UnmarshalMsgpack decodes a document written by MarshalMsgpack.
func UnmarshalMsgpack(data []byte) (*domain.Document, error) {
	var w WireDoc
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return FromWire(w)
}

// EncodedSize returns the number of bytes doc occupies in MessagePack form.
func EncodedSize(doc *domain.Document) (int, error) {
	data, err := MarshalMsgpack(doc)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
