package storage

import (
	"go.uber.org/zap"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for lifecycle and bulk-failure logging.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(engine *Engine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// WithIDGenerator replaces the ObjectID factory used for documents inserted
// without an _id.
func WithIDGenerator(gen func() domain.ObjectID) Option {
	return func(engine *Engine) {
		if gen != nil {
			engine.newID = gen
		}
	}
}

// WithDefaultCollectionOptions sets the options of collections created
// implicitly on first reference.
func WithDefaultCollectionOptions(opts CollectionOptions) Option {
	return func(engine *Engine) {
		engine.defaultOpts = opts
	}
}

const cappedSizeUnit = 256

// CollectionOptions configure a collection at creation time.
type CollectionOptions struct {
	// Capped collections keep at most MaxDocuments documents and SizeInBytes
	// bytes of encoded data, evicting the oldest documents first.
	Capped       bool  `msgpack:"capped" json:"capped"`
	MaxDocuments int64 `msgpack:"maxDocuments,omitempty" json:"maxDocuments,omitempty"`
	SizeInBytes  int64 `msgpack:"sizeInBytes,omitempty" json:"sizeInBytes,omitempty"`
}

// normalize validates o and rounds a capped size up to a multiple of 256
// bytes, with 256 as the minimum.
func (o CollectionOptions) normalize() (CollectionOptions, error) {
	if o.MaxDocuments < 0 || o.SizeInBytes < 0 {
		return o, domain.Errorf(domain.ErrInvalidOptions, "", "capped limits must not be negative")
	}
	if !o.Capped {
		if o.MaxDocuments != 0 || o.SizeInBytes != 0 {
			return o, domain.Errorf(domain.ErrInvalidOptions, "", "size limits require a capped collection")
		}
		return o, nil
	}
	if o.SizeInBytes < cappedSizeUnit {
		o.SizeInBytes = cappedSizeUnit
	}
	if rem := o.SizeInBytes % cappedSizeUnit; rem != 0 {
		o.SizeInBytes += cappedSizeUnit - rem
	}
	return o, nil
}
