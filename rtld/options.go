package rtld

import (
	"os"

	"go.uber.org/zap"
)

type Options struct {
	Logger    *zap.Logger
	Resolver  Resolver
	Bootstrap Bootstrap
	Exit      func(code int)
}

type Option func(*Options)

func NewOptions(opts ...Option) Options {
	o := Options{
		Logger:   zap.NewNop(),
		Resolver: ScopeResolver{},
		Exit:     os.Exit,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithResolver(r Resolver) Option {
	return func(o *Options) {
		if r != nil {
			o.Resolver = r
		}
	}
}

// WithBootstrap names the symbols the interpreter resolved while relocating
// itself. Records against them are skipped in the interpreter's tables.
func WithBootstrap(b Bootstrap) Option {
	return func(o *Options) { o.Bootstrap = b }
}

// WithExit replaces the process exit used by Fatal.
func WithExit(exit func(code int)) Option {
	return func(o *Options) {
		if exit != nil {
			o.Exit = exit
		}
	}
}
