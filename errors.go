package avro

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilIO indicates that NewReader/NewWriter was called with an nil interface
	ErrNilIO = errors.New("avro: NewReader/NewWriter called with a nil io.Reader/io.Writer")

	// ErrAlreadyBuffered indicates that NewWriter was called with an already-buffered
	// writer smaller than the requested size, which would lead to double buffering.
	ErrAlreadyBuffered = errors.New("avro: writer is already buffered")

	// ErrSchema indicates a malformed or unresolvable schema description: a bad
	// named-type reference, a missing required attribute or a duplicate union branch.
	ErrSchema = errors.New("avro: invalid schema")

	// ErrSchemaResolution indicates that the writer and reader schemas are
	// incompatible at some node.
	ErrSchemaResolution = errors.New("avro: schema resolution failed")

	// ErrStreamTruncated indicates that the stream ended before the current value
	// was complete.
	ErrStreamTruncated = errors.New("avro: stream truncated")

	// ErrEncoding indicates invalid UTF-8 in a string, a numeric value outside the
	// range of its primitive, or a value whose shape does not fit the schema.
	ErrEncoding = errors.New("avro: encoding error")

	// ErrOverflow indicates a variable-length integer carrying more bits than its
	// target width. Errors of this kind also match ErrEncoding.
	ErrOverflow = errors.New("avro: varint overflow")

	// ErrJSONEncoding indicates a JSON value that matches no union branch, a
	// malformed union wrapper or JSON text that does not fit the schema.
	ErrJSONEncoding = errors.New("avro: json encoding error")

	// ErrDepthExceeded indicates a value nested deeper than the configured limit.
	ErrDepthExceeded = errors.New("avro: maximum nesting depth exceeded")

	// ErrDiscardNegative indicates a Discard operation was attempted with a negative byte count.
	ErrDiscardNegative = errors.New("avro: cannot discard negative number of bytes")
)

// PathError records where inside a nested value an error happened.
// Path segments are record fields (".name"), array indexes ("[3]") and map keys ("{key}").
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// atPath prefixes err with a path segment, merging into an existing PathError.
func atPath(segment string, err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PathError); ok {
		return &PathError{Path: joinPath(segment, pe.Path), Err: pe.Err}
	}
	return &PathError{Path: segment, Err: err}
}

func joinPath(head, tail string) string {
	if tail == "" {
		return head
	}
	if strings.HasPrefix(tail, "[") || strings.HasPrefix(tail, "{") {
		return head + tail
	}
	return head + "." + tail
}

func atField(name string, err error) error { return atPath(name, err) }
func atIndex(i int, err error) error      { return atPath(fmt.Sprintf("[%d]", i), err) }
func atKey(k string, err error) error     { return atPath("{"+k+"}", err) }

func overflowError(format string, args ...any) error {
	return fmt.Errorf("%w: %w: "+format, append([]any{ErrEncoding, ErrOverflow}, args...)...)
}
