package domain

import (
	"github.com/google/uuid"
)

// ObjectID is a 128-bit unique document identifier.
type ObjectID uuid.UUID

// NilObjectID is the all-zero identifier.
var NilObjectID ObjectID

// NewObjectID returns a fresh random identifier.
func NewObjectID() ObjectID {
	return ObjectID(uuid.New())
}

// ParseObjectID parses the canonical 36-character textual form.
func ParseObjectID(s string) (ObjectID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilObjectID, Errorf(ErrTypeMismatch, "", "invalid object id %q: %v", s, err)
	}
	return ObjectID(id), nil
}

// UUID returns the identifier as a uuid.UUID.
func (id ObjectID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

func (id ObjectID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is NilObjectID.
func (id ObjectID) IsZero() bool {
	return id == NilObjectID
}
