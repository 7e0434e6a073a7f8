package avro

// DefaultMaxDepth bounds how deeply values may nest during encode and decode.
// Recursive schemas let data nest without limit; the guard turns runaway input
// into ErrDepthExceeded instead of exhausting the stack.
const DefaultMaxDepth = 1000

// DefaultMaxItems bounds the number of elements one binary array or map may
// declare. Block counts come from the input, and items such as null take no
// bytes, so a few bytes could otherwise claim billions of elements.
const DefaultMaxItems = 1 << 22

type options struct {
	maxDepth int
	maxItems int
}

// Option configures an encode or decode call.
type Option func(*options)

// WithMaxDepth sets the nesting limit. Values below 1 restore the default.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = DefaultMaxDepth
		}
		o.maxDepth = n
	}
}

// WithMaxItems sets the element limit for binary arrays and maps. Values below 1
// restore the default.
func WithMaxItems(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = DefaultMaxItems
		}
		o.maxItems = n
	}
}

func newOptions(opts []Option) options {
	o := options{maxDepth: DefaultMaxDepth, maxItems: DefaultMaxItems}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
