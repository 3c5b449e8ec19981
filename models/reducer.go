package models

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNodeNotFound is returned when an id addresses no node of the tree.
	ErrNodeNotFound = errors.New("node not found")

	// ErrUnknownProperty is returned when a child name is not declared by
	// the parent's schema type.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrDuplicateProperty is returned when a fixed child name is already
	// used by a sibling.
	ErrDuplicateProperty = errors.New("property already set")

	// ErrNotAParent is returned when adding a child below a leaf.
	ErrNotAParent = errors.New("property cannot have children")

	// ErrNotALeaf is returned when assigning a scalar value to a parent.
	ErrNotALeaf = errors.New("property cannot have a value")

	// ErrRootImmutable is returned by edits that would retype or remove the root.
	ErrRootImmutable = errors.New("root cannot be changed")

	// ErrUnknownMethod is returned for methods other than POST and GET.
	ErrUnknownMethod = errors.New("unknown method")
)

// Action is an edit command dispatched against a QueryState. The set of
// actions is closed: SetQuery, SetMethod, SetURL, SetHTTP, InputAdd,
// InputUpdate and InputRemove.
type Action interface {
	action()
}

// SetQuery replaces the tree with the one parsed from Input, which is JSON
// for POST and a query string for GET.
type SetQuery struct {
	Input string
}

// SetMethod switches between POST and GET.
type SetMethod struct {
	Method Method
}

// SetURL changes the search endpoint.
type SetURL struct {
	URL string
}

// SetHTTP stores the outcome of a request submission.
type SetHTTP struct {
	HTTP HTTPState
}

// InputAdd appends a child named Type below the node ParentID.
type InputAdd struct {
	ParentID string
	Type     string
}

// InputUpdate retypes a node, overwrites its value, or both.
type InputUpdate struct {
	ID    string
	Type  *string
	Value *string
}

// InputRemove removes a node and its subtree.
type InputRemove struct {
	ID string
}

func (SetQuery) action()    {}
func (SetMethod) action()   {}
func (SetURL) action()      {}
func (SetHTTP) action()     {}
func (InputAdd) action()    {}
func (InputUpdate) action() {}
func (InputRemove) action() {}

// ActionKind returns the wire name of an action.
func ActionKind(a Action) string {
	switch a.(type) {
	case SetQuery:
		return "setQuery"
	case SetMethod:
		return "setMethod"
	case SetURL:
		return "setUrl"
	case SetHTTP:
		return "setHttp"
	case InputAdd:
		return "inputAdd"
	case InputUpdate:
		return "inputUpdate"
	case InputRemove:
		return "inputRemove"
	}
	panic(fmt.Sprintf("models: unhandled action %T", a))
}

// preReduce applies a single action without re-deriving the query text
// or the composed request.
func preReduce(s QueryState, a Action) (QueryState, error) {
	switch a := a.(type) {
	case SetQuery:
		root, err := Deserialize(a.Input, s.Request.Method)
		if err != nil {
			s.Query = QueryText{Input: a.Input, Error: err.Error()}
			return s, nil
		}
		s.Params = root
		s.Query = QueryText{Input: a.Input}
	case SetMethod:
		if a.Method != MethodPost && a.Method != MethodGet {
			return s, fmt.Errorf("%w: %q", ErrUnknownMethod, a.Method)
		}
		s.Request.Method = a.Method
	case SetURL:
		s.Request.URL = a.URL
	case SetHTTP:
		s.HTTP = a.HTTP
	case InputAdd:
		root, err := addInput(s.Params, a.ParentID, a.Type)
		if err != nil {
			return s, err
		}
		s.Params = root
	case InputUpdate:
		root, err := updateInput(s.Params, a.ID, a.Type, a.Value)
		if err != nil {
			return s, err
		}
		s.Params = root
	case InputRemove:
		root, _, err := Remove(s.Params, a.ID)
		if err != nil {
			return s, err
		}
		s.Params = root
	default:
		panic(fmt.Sprintf("models: unhandled action %T", a))
	}
	return s, nil
}

func siblingUses(parent *InputNode, name, exceptID string) bool {
	for _, child := range parent.Children {
		if child.ID != exceptID && child.Name() == name {
			return true
		}
	}
	return false
}

func addInput(root *InputNode, parentID, typeName string) (*InputNode, error) {
	return rewrite(root, parentID, func(p *InputNode) (*InputNode, error) {
		if !p.Type.HasChildren() {
			return nil, fmt.Errorf("%w: '%s'", ErrNotAParent, p.Name())
		}
		t, ok := p.Type.Child(typeName)
		if !ok {
			return nil, fmt.Errorf("%w: '%s' under '%s'", ErrUnknownProperty, typeName, p.Name())
		}
		if !p.Type.IsBag() && siblingUses(p, typeName, "") {
			return nil, fmt.Errorf("%w: '%s'", ErrDuplicateProperty, typeName)
		}

		clone := *p
		clone.Children = append(slices.Clip(p.Children), newNode(nextChildID(p), t))
		return &clone, nil
	})
}

func updateInput(root *InputNode, id string, typeName, value *string) (*InputNode, error) {
	if id == "" {
		return nil, ErrRootImmutable
	}
	return rewrite(root, parentID(id), func(p *InputNode) (*InputNode, error) {
		i := p.childIndex(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
		}
		node := *p.Children[i]

		if typeName != nil && *typeName != node.Name() {
			t, ok := p.Type.Child(*typeName)
			if !ok {
				return nil, fmt.Errorf("%w: '%s' under '%s'", ErrUnknownProperty, *typeName, p.Name())
			}
			if !p.Type.IsBag() && siblingUses(p, *typeName, id) {
				return nil, fmt.Errorf("%w: '%s'", ErrDuplicateProperty, *typeName)
			}
			// Leaves keep their text across a retype. Fixed children of
			// one parent type are meaningless under another, so parents
			// start over unless they are renamed bag entries.
			if node.Type.HasChildren() != t.HasChildren() || (t.HasChildren() && !p.Type.IsBag()) {
				fresh := newNode(id, t)
				node.Value, node.Children = fresh.Value, fresh.Children
			}
			node.Type = t
		}

		if value != nil {
			if node.Type.HasChildren() {
				return nil, fmt.Errorf("%w: '%s'", ErrNotALeaf, node.Name())
			}
			node.Value = *value
		}

		clone := *p
		clone.Children = slices.Clone(p.Children)
		clone.Children[i] = &node
		return &clone, nil
	})
}

// RemainingTypes lists the child names still available under parent for
// the node exceptID (pass "" when adding a new child). Bags accept any
// name and report nil.
func RemainingTypes(parent *InputNode, exceptID string) []string {
	if !parent.Type.HasChildren() || parent.Type.IsBag() {
		return nil
	}
	var remaining []string
	for _, name := range parent.Type.ChildNames() {
		if !siblingUses(parent, name, exceptID) {
			remaining = append(remaining, name)
		}
	}
	return remaining
}
