package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// InputNode is one node of the parameter tree a user is editing.
//
// Nodes are never modified once they are part of a QueryState. Edits copy
// the path from the root down to the edited node and share every other
// subtree with the previous snapshot.
type InputNode struct {
	// ID is the dotted path of the node, e.g. "2.1.0". The root has an
	// empty ID. Ids are assigned on creation and never renumbered.
	ID string

	// Type is the schema type the node currently represents.
	Type *ParameterType

	// Value is the scalar value of a leaf node.
	Value string

	// Children are the child nodes of a Parent-typed node, in insertion
	// order. Non-nil exactly when Type.HasChildren().
	Children []*InputNode
}

// NewRoot returns an empty tree typed by the root schema.
func NewRoot() *InputNode {
	return newNode("", Root())
}

func newNode(id string, t *ParameterType) *InputNode {
	if t.HasChildren() {
		return &InputNode{ID: id, Type: t, Children: []*InputNode{}}
	}
	return &InputNode{ID: id, Type: t, Value: t.DefaultValue()}
}

// Name is the parameter name of the node.
func (n *InputNode) Name() string {
	return n.Type.Name
}

// MarshalJSON renders the node as {id, type, value}, where value is the
// scalar string of a leaf or the list of children of a parent.
func (n *InputNode) MarshalJSON() ([]byte, error) {
	out := struct {
		ID    string `json:"id"`
		Type  string `json:"type"`
		Value any    `json:"value"`
	}{ID: n.ID, Type: n.Type.Name}
	if n.Type.HasChildren() {
		out.Value = n.Children
	} else {
		out.Value = n.Value
	}
	return json.Marshal(out)
}

func (n *InputNode) childIndex(id string) int {
	for i, child := range n.Children {
		if child.ID == id {
			return i
		}
	}
	return -1
}

// prefixes splits "2.1.0" into ["2", "2.1", "2.1.0"].
func prefixes(id string) []string {
	if id == "" {
		return nil
	}
	segments := strings.Split(id, ".")
	out := make([]string, len(segments))
	for i := range segments {
		out[i] = strings.Join(segments[:i+1], ".")
	}
	return out
}

func parentID(id string) string {
	i := strings.LastIndex(id, ".")
	if i < 0 {
		return ""
	}
	return id[:i]
}

func childID(parentID string, n int) string {
	if parentID == "" {
		return strconv.Itoa(n)
	}
	return parentID + "." + strconv.Itoa(n)
}

// nextChildID returns the id for a child appended to n: one past the
// numeric suffix of the last child, or 0 when n has no children.
func nextChildID(n *InputNode) string {
	if len(n.Children) == 0 {
		return childID(n.ID, 0)
	}
	last := n.Children[len(n.Children)-1].ID
	suffix, err := strconv.Atoi(last[strings.LastIndex(last, ".")+1:])
	if err != nil {
		suffix = len(n.Children) - 1
	}
	return childID(n.ID, suffix+1)
}

// Resolve returns the node addressed by id, or nil if there is none.
// An empty id addresses the root.
func Resolve(root *InputNode, id string) *InputNode {
	node := root
	for _, prefix := range prefixes(id) {
		i := node.childIndex(prefix)
		if i < 0 {
			return nil
		}
		node = node.Children[i]
	}
	return node
}

// rewrite returns a copy of root in which the node addressed by id is
// replaced by the result of fn. Only the nodes on the path from the root
// to id are copied. If fn returns nil the node is removed from its parent.
func rewrite(root *InputNode, id string, fn func(*InputNode) (*InputNode, error)) (*InputNode, error) {
	return rewriteAt(root, id, prefixes(id), fn)
}

func rewriteAt(node *InputNode, id string, path []string, fn func(*InputNode) (*InputNode, error)) (*InputNode, error) {
	if len(path) == 0 {
		return fn(node)
	}
	i := node.childIndex(path[0])
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	child, err := rewriteAt(node.Children[i], id, path[1:], fn)
	if err != nil {
		return nil, err
	}

	clone := *node
	clone.Children = slices.Clone(node.Children)
	if child == nil {
		clone.Children = slices.Delete(clone.Children, i, i+1)
	} else {
		clone.Children[i] = child
	}
	return &clone, nil
}

// Remove returns a copy of root without the node addressed by id, along
// with the removed node. Siblings keep their ids.
func Remove(root *InputNode, id string) (*InputNode, *InputNode, error) {
	if id == "" {
		return nil, nil, ErrRootImmutable
	}
	var removed *InputNode
	next, err := rewrite(root, id, func(n *InputNode) (*InputNode, error) {
		removed = n
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return next, removed, nil
}
