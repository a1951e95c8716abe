package update

import (
	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Parse converts an update document such as
//
//	{"$set": {"name": "Johny"}, "$inc": {"visits": 1}, "$unset": {"tmp": ""}}
//
// into an Update. Operators are applied in document order.
func Parse(doc *domain.Document) (Update, error) {
	if doc.Len() == 0 {
		return nil, domain.Errorf(domain.ErrInvalidUpdate, "", "update document is empty")
	}
	var out Update
	for _, e := range doc.Elements() {
		fields, ok := e.Value.DocumentValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidUpdate, e.Key, "operator expects a document")
		}
		var kind OpKind
		switch e.Key {
		case "$set":
			kind = OpSet
		case "$unset":
			kind = OpUnset
		case "$inc":
			kind = OpInc
		default:
			return nil, domain.Errorf(domain.ErrInvalidUpdate, e.Key, "unknown update operator")
		}
		for _, f := range fields.Elements() {
			op := Op{Kind: kind, Path: f.Key}
			if kind != OpUnset {
				op.Value = f.Value
			}
			out = append(out, op)
		}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
