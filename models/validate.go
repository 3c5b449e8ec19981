package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Check returns advice about value for display next to the input, or ""
// when the value fits the type. It never rejects anything: out of range
// and half-typed numbers are still accepted into the tree and sent.
func (t *ParameterType) Check(value string) string {
	if value == "" || t.HasChildren() {
		return ""
	}
	trimmed := strings.TrimSpace(value)
	switch t.Primitive {
	case Integer:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return "Must be an integer"
		}
		return t.checkBounds(float64(n))
	case Float:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return "Must be a number"
		}
		return t.checkBounds(f)
	case Boolean:
		if !strings.EqualFold(trimmed, "true") && !strings.EqualFold(trimmed, "false") {
			return "Must be true or false"
		}
	}
	return ""
}

func (t *ParameterType) checkBounds(v float64) string {
	if t.Min != nil && v < *t.Min {
		return fmt.Sprintf("Must be at least %s", formatBound(*t.Min))
	}
	if t.Max != nil && v > *t.Max {
		return fmt.Sprintf("Must be at most %s", formatBound(*t.Max))
	}
	return ""
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NodeView is a tree row as the editor renders it.
type NodeView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Primitive Primitive  `json:"primitive"`
	Value     string     `json:"value,omitempty"`
	Advice    string     `json:"advice,omitempty"`
	Options   []string   `json:"options,omitempty"`
	Children  []NodeView `json:"children,omitempty"`
	Addable   []string   `json:"addable,omitempty"`
	Bag       bool       `json:"bag,omitempty"`
}

// Annotate builds the editor rows for the children of root. Options lists
// the names a row may be retyped to, Addable the names a new child of a
// parent row may take.
func Annotate(root *InputNode) []NodeView {
	views := make([]NodeView, 0, len(root.Children))
	for _, child := range root.Children {
		views = append(views, annotate(root, child))
	}
	return views
}

func annotate(parent, n *InputNode) NodeView {
	v := NodeView{
		ID:        n.ID,
		Name:      n.Name(),
		Primitive: n.Type.Primitive,
		Options:   RemainingTypes(parent, n.ID),
	}
	if !n.Type.HasChildren() {
		v.Value = n.Value
		v.Advice = n.Type.Check(n.Value)
		return v
	}
	v.Bag = n.Type.IsBag()
	v.Addable = RemainingTypes(n, "")
	v.Children = Annotate(n)
	return v
}
