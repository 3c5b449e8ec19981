package models

import (
	"encoding/json"
	"sort"
)

// Primitive is the value kind of a ParameterType.
type Primitive string

const (
	String  Primitive = "String"
	Integer Primitive = "Integer"
	Float   Primitive = "Float"
	Boolean Primitive = "Boolean"

	// Parent marks a type whose nodes hold child nodes instead of a value.
	Parent Primitive = "Parent"
)

// ParameterType describes one request parameter of the search API.
//
// Types are built once by Root and never modified afterwards, so they are
// shared by reference between all tree snapshots.
type ParameterType struct {
	// Name is the parameter name as it appears in the request ("hits", "ranking").
	Name string

	// Primitive is the value kind. Parent types carry Children or Bag.
	Primitive Primitive

	// Children holds the fixed set of named child parameters.
	Children map[string]*ParameterType

	// Bag is the uniform type of every child of an open property bag.
	// Child names of a bag are chosen by the caller.
	Bag *ParameterType

	// Min and Max are inclusive bounds for Integer and Float values.
	Min *float64
	Max *float64

	// Default is the value given to a newly added node of this type.
	Default *string
}

// HasChildren reports whether nodes of this type hold child nodes.
func (t *ParameterType) HasChildren() bool {
	return t.Primitive == Parent
}

// IsBag reports whether the type is an open property bag.
func (t *ParameterType) IsBag() bool {
	return t.Bag != nil
}

// Child returns the type of the child called name. For open property bags
// any name is accepted and a type carrying that name is synthesized from
// the bag's uniform child type.
func (t *ParameterType) Child(name string) (*ParameterType, bool) {
	if t.Bag != nil {
		synthesized := *t.Bag
		synthesized.Name = name
		return &synthesized, true
	}
	child, ok := t.Children[name]
	return child, ok
}

// ChildNames returns the names of the fixed children, sorted.
func (t *ParameterType) ChildNames() []string {
	names := make([]string, 0, len(t.Children))
	for name := range t.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultValue returns the scalar value of a freshly created leaf.
func (t *ParameterType) DefaultValue() string {
	if t.Default == nil {
		return ""
	}
	return *t.Default
}

type parameterTypeJSON struct {
	Name      string               `json:"name,omitempty"`
	Primitive Primitive            `json:"type"`
	Min       *float64             `json:"min,omitempty"`
	Max       *float64             `json:"max,omitempty"`
	Default   *string              `json:"default,omitempty"`
	Children  []*parameterTypeJSON `json:"children,omitempty"`
	Bag       *parameterTypeJSON   `json:"bag,omitempty"`
}

func (t *ParameterType) toJSON() *parameterTypeJSON {
	out := &parameterTypeJSON{
		Name:      t.Name,
		Primitive: t.Primitive,
		Min:       t.Min,
		Max:       t.Max,
		Default:   t.Default,
	}
	for _, name := range t.ChildNames() {
		out.Children = append(out.Children, t.Children[name].toJSON())
	}
	if t.Bag != nil {
		out.Bag = t.Bag.toJSON()
	}
	return out
}

// MarshalJSON renders the type with its children sorted by name.
func (t *ParameterType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toJSON())
}

// Schema construction helpers. Only used while building the root below.

func leaf(name string, p Primitive) *ParameterType {
	return &ParameterType{Name: name, Primitive: p}
}

func (t *ParameterType) atLeast(min float64) *ParameterType {
	t.Min = &min
	return t
}

func (t *ParameterType) between(min, max float64) *ParameterType {
	t.Min, t.Max = &min, &max
	return t
}

func (t *ParameterType) withDefault(v string) *ParameterType {
	t.Default = &v
	return t
}

func parent(name string, children ...*ParameterType) *ParameterType {
	t := &ParameterType{Name: name, Primitive: Parent, Children: make(map[string]*ParameterType, len(children))}
	for _, child := range children {
		t.Children[child.Name] = child
	}
	return t
}

func bag(name string, p Primitive) *ParameterType {
	return &ParameterType{Name: name, Primitive: Parent, Bag: &ParameterType{Primitive: p}}
}

var rootType = parent("",
	leaf("yql", String),
	leaf("hits", Integer).between(0, 400),
	leaf("offset", Integer).atLeast(0),
	leaf("queryProfile", String),
	leaf("groupingSessionCache", Boolean),
	leaf("searchChain", String),
	leaf("timeout", Float).atLeast(0),
	leaf("noCache", Boolean),
	parent("model",
		leaf("defaultIndex", String),
		leaf("encoding", String),
		leaf("filter", String),
		leaf("locale", String),
		leaf("language", String),
		leaf("queryString", String),
		leaf("restrict", String),
		leaf("searchPath", String),
		leaf("sources", String),
		leaf("type", String),
	),
	parent("ranking",
		leaf("location", String),
		bag("features", String),
		leaf("listFeatures", Boolean),
		leaf("profile", String),
		bag("properties", String),
		parent("softtimeout",
			leaf("enable", Boolean).withDefault("true"),
			leaf("factor", Float).between(0, 1).withDefault("0.7"),
		),
		leaf("sorting", String),
		leaf("freshness", String),
		leaf("queryCache", Boolean),
		leaf("rerankCount", Integer).atLeast(0),
		leaf("keepRankCount", Integer).atLeast(0),
		leaf("rankScoreDropLimit", Float),
		parent("matching",
			leaf("numThreadsPerSearch", Integer).atLeast(0),
			leaf("minHitsPerThread", Integer).atLeast(0),
			leaf("numSearchPartitions", Integer).atLeast(0),
			leaf("termwiseLimit", Float).between(0, 1),
			leaf("postFilterThreshold", Float).between(0, 1),
			leaf("approximateThreshold", Float).between(0, 1),
			leaf("targetHitsMaxAdjustmentFactor", Float).atLeast(1),
		),
		parent("matchPhase",
			leaf("attribute", String),
			leaf("maxHits", Integer).atLeast(0),
			leaf("ascending", Boolean),
			parent("diversity",
				leaf("attribute", String),
				leaf("minGroups", Integer).atLeast(0),
			),
		),
	),
	leaf("collapsesize", Integer).atLeast(1),
	leaf("collapsefield", String),
	parent("collapse",
		leaf("summary", String),
	),
	parent("grouping",
		leaf("defaultMaxGroups", Integer).atLeast(-1),
		leaf("defaultMaxHits", Integer).atLeast(-1),
		leaf("globalMaxGroups", Integer).atLeast(-1),
		leaf("defaultPrecisionFactor", Float).atLeast(0),
	),
	parent("presentation",
		leaf("bolding", Boolean).withDefault("true"),
		leaf("format", String).withDefault("json"),
		leaf("template", String),
		leaf("summary", String),
		leaf("timing", Boolean),
	),
	parent("trace",
		leaf("level", Integer).atLeast(1),
		leaf("explainLevel", Integer).atLeast(1),
		leaf("profileDepth", Integer).atLeast(1),
		leaf("timestamps", Boolean),
		leaf("query", Boolean),
	),
	parent("rules",
		leaf("off", Boolean),
		leaf("rulebase", String),
	),
	parent("tracelevel",
		leaf("rules", Integer).atLeast(1),
	),
	parent("dispatch",
		leaf("topKProbability", Float).between(0, 1),
	),
	leaf("recall", String),
	leaf("user", String),
	leaf("hitcountestimate", Boolean),
	parent("metrics",
		leaf("ignore", Boolean),
	),
	parent("weakAnd",
		leaf("replace", Boolean),
	),
	parent("wand",
		leaf("hits", Integer).atLeast(0),
	),
	parent("sorting",
		leaf("degrading", Boolean),
	),
	parent("streaming",
		leaf("userid", Integer),
		leaf("groupname", String),
		leaf("selection", String),
		leaf("maxbucketspervisitor", Integer).atLeast(0),
	),
)

// Root returns the schema of the whole search request.
func Root() *ParameterType {
	return rootType
}
