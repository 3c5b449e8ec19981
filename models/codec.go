package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Method is the HTTP method used to send the query.
type Method string

const (
	MethodPost Method = "POST"
	MethodGet  Method = "GET"
)

// SchemaError reports input that does not fit the parameter schema. Its
// message is shown to the user as is.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string {
	return e.Message
}

func schemaErrorf(format string, args ...any) error {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotAnObject is returned when a JSON query is not an object.
var ErrNotAnObject = errors.New("Expected query to be a JSON object")

// Serialize renders the tree as the text sent with method: indented JSON
// for POST, a query string for GET.
func Serialize(root *InputNode, method Method) (string, error) {
	if method == MethodGet {
		return toQueryString(root), nil
	}
	return toJSON(root)
}

func toJSON(root *InputNode) (string, error) {
	var compact, out bytes.Buffer
	toObject(root, true).writeJSON(&compact)
	if err := json.Indent(&out, compact.Bytes(), "", "    "); err != nil {
		return "", fmt.Errorf("indent query: %w", err)
	}
	return out.String(), nil
}

func toQueryString(root *InputNode) string {
	var pairs []string
	toObject(root, false).flatten("", func(key, value string) {
		pairs = append(pairs, formEscape(key)+"="+formEscape(value))
	})
	return strings.Join(pairs, "&")
}

// formEscape is url.QueryEscape with '*' left as is, the way HTML forms
// encode it.
func formEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%2A", "*")
}

// toObject maps the children of n to an ordered object keyed by parameter
// name. Leaves are coerced to JSON values when typed is set and kept as raw
// text otherwise.
func toObject(n *InputNode, typed bool) *object {
	obj := newObject()
	for _, child := range n.Children {
		switch {
		case child.Type.HasChildren():
			obj.set(child.Name(), toObject(child, typed))
		case typed:
			obj.set(child.Name(), coerce(child.Value, child.Type.Primitive))
		default:
			obj.set(child.Name(), child.Value)
		}
	}
	return obj
}

var (
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloat = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)
	jsonNull     = json.RawMessage("null")
)

// coerce converts a leaf value to its JSON form. Numbers are read from the
// longest numeric prefix and become null when there is none.
func coerce(value string, p Primitive) json.RawMessage {
	trimmed := strings.TrimSpace(value)
	switch p {
	case Integer:
		digits := leadingInt.FindString(trimmed)
		if digits == "" {
			return jsonNull
		}
		if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
			return json.RawMessage(strconv.FormatInt(n, 10))
		}
		f, _ := strconv.ParseFloat(digits, 64)
		return floatJSON(f)
	case Float:
		number := leadingFloat.FindString(trimmed)
		if number == "" {
			return jsonNull
		}
		f, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return jsonNull
		}
		return floatJSON(f)
	case Boolean:
		return json.RawMessage(strconv.FormatBool(strings.EqualFold(value, "true")))
	default:
		return quote(value)
	}
}

func floatJSON(f float64) json.RawMessage {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return jsonNull
	}
	if f == 0 {
		f = 0 // drop the sign of -0
	}
	b, err := json.Marshal(f)
	if err != nil {
		return jsonNull
	}
	return b
}

// Deserialize parses text written for method into a new tree. Parse errors
// come from the JSON decoder or query unescaping; schema mismatches are
// reported as *SchemaError. Numeric bounds are not checked.
func Deserialize(input string, method Method) (*InputNode, error) {
	var obj *object
	if method == MethodGet {
		parsed, err := parseQueryString(input)
		if err != nil {
			return nil, err
		}
		obj = parsed
	} else {
		parsed, err := decodeOrdered(input)
		if err != nil {
			return nil, err
		}
		o, ok := parsed.(*object)
		if !ok || o.array {
			return nil, ErrNotAnObject
		}
		obj = o
	}

	root := NewRoot()
	children, err := buildChildren(root, obj)
	if err != nil {
		return nil, err
	}
	root.Children = children
	return root, nil
}

func parseQueryString(input string) (*object, error) {
	obj := newObject()
	for _, pair := range strings.Split(strings.TrimPrefix(input, "?"), "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, err
		}
		obj.setPath(strings.Split(key, "."), value)
	}
	return obj, nil
}

// buildChildren creates the children of parent from obj, numbering them
// in key order.
func buildChildren(parent *InputNode, obj *object) ([]*InputNode, error) {
	children := make([]*InputNode, 0, len(obj.keys))
	for i, key := range obj.keys {
		t, ok := parent.Type.Child(key)
		if !ok {
			if parent.ID == "" {
				return nil, schemaErrorf("Unknown property '%s' on root level", key)
			}
			return nil, schemaErrorf("Unknown property '%s' under '%s'", key, parent.Name())
		}

		node := newNode(childID(parent.ID, i), t)
		switch v := obj.values[key].(type) {
		case *object:
			if !t.HasChildren() {
				return nil, schemaErrorf("Expected property '%s' to be %s", key, t.Primitive)
			}
			grandchildren, err := buildChildren(node, v)
			if err != nil {
				return nil, err
			}
			node.Children = grandchildren
		case string:
			if t.HasChildren() {
				return nil, schemaErrorf("Property '%s' cannot have a value, supported children: %s",
					key, strings.Join(t.ChildNames(), ","))
			}
			node.Value = v
		}
		children = append(children, node)
	}
	return children, nil
}
