package repository

import (
	"github.com/okian/rollcall/pkg/logger"
)

// Option configures a store.
type Option func(*options)

type options struct {
	log logger.Logger
}

func buildOptions(opts []Option) options {
	o := options{log: logger.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for decode warnings and fallbacks.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
