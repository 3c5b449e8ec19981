package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootNames(t *testing.T) {
	want := []string{
		"collapse", "collapsefield", "collapsesize", "dispatch", "grouping",
		"groupingSessionCache", "hitcountestimate", "hits", "metrics", "model",
		"noCache", "offset", "presentation", "queryProfile", "ranking", "recall",
		"rules", "searchChain", "sorting", "streaming", "timeout", "trace",
		"tracelevel", "user", "wand", "weakAnd", "yql",
	}
	assert.ElementsMatch(t, want, Root().ChildNames())
	assert.IsNonDecreasing(t, Root().ChildNames())
}

func TestSchemaTypes(t *testing.T) {
	root := Root()

	hits := root.Children["hits"]
	assert.Equal(t, Integer, hits.Primitive)
	require.NotNil(t, hits.Min)
	require.NotNil(t, hits.Max)
	assert.Equal(t, 0.0, *hits.Min)
	assert.Equal(t, 400.0, *hits.Max)

	assert.Equal(t, Float, root.Children["timeout"].Primitive)
	assert.Equal(t, Boolean, root.Children["noCache"].Primitive)

	tracelevel := root.Children["tracelevel"]
	assert.True(t, tracelevel.HasChildren())
	assert.Equal(t, []string{"rules"}, tracelevel.ChildNames())
	assert.Equal(t, []string{"topKProbability"}, root.Children["dispatch"].ChildNames())
	assert.Equal(t, []string{"summary"}, root.Children["collapse"].ChildNames())
	assert.Equal(t, []string{"ascending", "attribute", "diversity", "maxHits"},
		root.Children["ranking"].Children["matchPhase"].ChildNames())
}

func TestChildOfBag(t *testing.T) {
	features := Root().Children["ranking"].Children["features"]
	require.True(t, features.IsBag())
	assert.True(t, features.HasChildren())

	child, ok := features.Child("query(embedding)")
	require.True(t, ok)
	assert.Equal(t, "query(embedding)", child.Name)
	assert.Equal(t, String, child.Primitive)
	assert.Empty(t, features.Bag.Name, "bag type is not modified")

	_, ok = Root().Child("features")
	assert.False(t, ok)
}

func TestParameterTypeJSON(t *testing.T) {
	b, err := json.Marshal(Root().Children["ranking"].Children["softtimeout"])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "softtimeout",
		"type": "Parent",
		"children": [
			{"name": "enable", "type": "Boolean", "default": "true"},
			{"name": "factor", "type": "Float", "min": 0, "max": 1, "default": "0.7"}
		]
	}`, string(b))

	b, err = json.Marshal(Root().Children["ranking"].Children["properties"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "properties", "type": "Parent", "bag": {"type": "String"}}`, string(b))
}
