package service

import (
	"github.com/roach88/rfsync/internal/domain"
)

// Option configures a pipeline.
type Option func(*options)

type options struct {
	decorators []Layer
	validator  domain.Validator
	noCache    bool
}

// WithDecorators inserts user layers between the cache and the built-in
// layers, outermost first. A layer instance must not be shared between
// pipelines.
func WithDecorators(layers ...Layer) Option {
	return func(o *options) {
		o.decorators = append(o.decorators, layers...)
	}
}

// WithValidator sets the validator used by Validate.
func WithValidator(v domain.Validator) Option {
	return func(o *options) {
		o.validator = v
	}
}

// WithoutCache replaces the cache layer with a plain pass-through.
// Useful when debugging a decorator.
func WithoutCache() Option {
	return func(o *options) {
		o.noCache = true
	}
}

// New builds the layer chain over table and returns its outermost layer.
func New(table *domain.Table, opts ...Option) API {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var top Layer = &cacheLayer{}
	if o.noCache {
		top = &Decorator{}
	}

	layers := []Layer{top}
	layers = append(layers, o.decorators...)
	layers = append(layers,
		&locatorLayer{},
		&defaultLayer{validator: o.validator},
		&findLayer{},
		&resolverLayer{table: table},
	)

	for i, layer := range layers {
		d := layer.decorator()
		d.top = top
		if i+1 < len(layers) {
			d.next = layers[i+1]
		}
	}
	return top
}
