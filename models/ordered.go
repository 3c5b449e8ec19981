package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// object is a JSON object that remembers key insertion order. Values are
// either *object or a leaf: string for parsed and query-string values,
// json.RawMessage for coerced JSON output. Parsed arrays are objects keyed
// by index with array set.
type object struct {
	keys   []string
	values map[string]any
	array  bool
}

func newObject() *object {
	return &object{values: map[string]any{}}
}

// set assigns key. A key that is already present keeps its position.
func (o *object) set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// setPath assigns value at a dotted path, creating intermediate objects.
// A scalar found on the way is replaced by an object.
func (o *object) setPath(path []string, value any) {
	cur := o
	for _, key := range path[:len(path)-1] {
		next, ok := cur.values[key].(*object)
		if !ok {
			next = newObject()
			cur.set(key, next)
		}
		cur = next
	}
	cur.set(path[len(path)-1], value)
}

func (o *object) writeJSON(buf *bytes.Buffer) {
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(quote(key))
		buf.WriteByte(':')
		switch v := o.values[key].(type) {
		case *object:
			v.writeJSON(buf)
		case json.RawMessage:
			buf.Write(v)
		case string:
			buf.Write(quote(v))
		}
	}
	buf.WriteByte('}')
}

// flatten appends dotted key/value pairs of every leaf in order.
func (o *object) flatten(prefix string, emit func(key, value string)) {
	for _, key := range o.keys {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := o.values[key].(type) {
		case *object:
			v.flatten(full, emit)
		case string:
			emit(full, v)
		case json.RawMessage:
			emit(full, string(v))
		}
	}
}

// quote encodes s as a JSON string without escaping HTML characters.
func quote(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

var (
	errUnexpectedEnd = errors.New("Unexpected end of JSON input")
	errTrailingData  = errors.New("invalid character after top-level value")
)

// decodeOrdered parses a JSON document keeping object key order. Scalars
// become their textual form with numbers in shortest float notation; null
// becomes the empty string. Numbers beyond float64 range read as
// "Infinity" or "-Infinity".
func decodeOrdered(input string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, errTrailingData
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, endOfInput(err)
	}

	switch t := tok.(type) {
	case json.Delim:
		obj := newObject()
		obj.array = t == '['
		for i := 0; dec.More(); i++ {
			key := strconv.Itoa(i)
			if t == '{' {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, endOfInput(err)
				}
				key = keyTok.(string)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, endOfInput(err)
		}
		return obj, nil
	case string:
		return t, nil
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		switch {
		case math.IsInf(f, 1):
			return "Infinity", nil
		case math.IsInf(f, -1):
			return "-Infinity", nil
		case err != nil:
			return t.String(), nil
		}
		return string(floatJSON(f)), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", nil
	}
}

func endOfInput(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errUnexpectedEnd
	}
	return err
}
