package avro

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// jsonMember is one key of a JSON object.
type jsonMember struct {
	Key   string
	Value any
}

// jsonObject is a JSON object that keeps its keys in document order. Map values
// decoded from JSON keep the order their keys were written in.
type jsonObject []jsonMember

func (o jsonObject) get(key string) (any, bool) {
	for i := len(o) - 1; i >= 0; i-- {
		if o[i].Key == key {
			return o[i].Value, true
		}
	}
	return nil, false
}

// objectOf accepts both ordered objects and plain Go maps, the latter with
// sorted keys.
func objectOf(x any) (jsonObject, bool) {
	switch t := x.(type) {
	case jsonObject:
		return t, true
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(jsonObject, len(keys))
		for i, k := range keys {
			obj[i] = jsonMember{Key: k, Value: t[k]}
		}
		return obj, true
	}
	return nil, false
}

// readJSONTree reads the next complete JSON value from dec. Objects become
// jsonObject, arrays []any, numbers json.Number.
func readJSONTree(dec *json.Decoder, maxDepth int) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, jsonReadError(err)
	}
	return readJSONTreeFrom(dec, tok, maxDepth)
}

func readJSONTreeFrom(dec *json.Decoder, tok json.Token, depth int) (any, error) {
	if depth <= 0 {
		return nil, ErrDepthExceeded
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := jsonObject{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, jsonReadError(err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("%w: object key %v is not a string", ErrJSONEncoding, keyTok)
				}
				valTok, err := dec.Token()
				if err != nil {
					return nil, jsonReadError(err)
				}
				val, err := readJSONTreeFrom(dec, valTok, depth-1)
				if err != nil {
					return nil, err
				}
				obj = append(obj, jsonMember{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, jsonReadError(err)
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				valTok, err := dec.Token()
				if err != nil {
					return nil, jsonReadError(err)
				}
				val, err := readJSONTreeFrom(dec, valTok, depth-1)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, jsonReadError(err)
			}
			return arr, nil
		}
		return nil, fmt.Errorf("%w: unexpected delimiter %q", ErrJSONEncoding, rune(t))
	case float64:
		return json.Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case nil, bool, string, json.Number:
		return t, nil
	}
	return nil, fmt.Errorf("%w: unexpected token %v", ErrJSONEncoding, tok)
}

// jsonReadError classifies a tokenizer error. Input that ends inside a token is
// reported by the tokenizer as a syntax error and counts as truncation.
func jsonReadError(err error) error {
	var se *json.SyntaxError
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		(errors.As(err, &se) && strings.Contains(se.Error(), "unexpected end of JSON input")) {
		return fmt.Errorf("%w: %w", ErrStreamTruncated, err)
	}
	return fmt.Errorf("%w: %w", ErrJSONEncoding, err)
}

// jsonInt reads an integral JSON number. Plain Go numbers are accepted too so that
// defaults given as Go data work.
func jsonInt(x any) (int64, bool) {
	switch t := x.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return jsonInt(f)
	case float64:
		if t != math.Trunc(t) || t < math.MinInt64 || t >= math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float32:
		return jsonInt(float64(t))
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	}
	return 0, false
}

// jsonFloat reads any JSON number.
func jsonFloat(x any) (float64, bool) {
	switch t := x.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func isJSONNumber(x any) bool {
	_, ok := jsonFloat(x)
	return ok
}

// jsonTypeName names the JSON type of a tree node for error messages.
func jsonTypeName(x any) string {
	switch x.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case jsonObject, map[string]any:
		return "object"
	}
	if isJSONNumber(x) {
		return "number"
	}
	return fmt.Sprintf("%T", x)
}
