package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		value string
		p     Primitive
		want  string
	}{
		{"integer", "12", Integer, "12"},
		{"integer with trailing text", "12abc", Integer, "12"},
		{"integer from float text", "3.9", Integer, "3"},
		{"negative integer", " -4 ", Integer, "-4"},
		{"empty integer", "", Integer, "null"},
		{"non numeric integer", "abc", Integer, "null"},
		{"float", "0.50", Float, "0.5"},
		{"float exponent", "1e3", Float, "1000"},
		{"float prefix", ".25x", Float, "0.25"},
		{"negative zero", "-0", Float, "0"},
		{"empty float", "", Float, "null"},
		{"boolean true", "TRUE", Boolean, "true"},
		{"boolean anything else", "yes", Boolean, "false"},
		{"string", `say "hi" <b>`, String, `"say \"hi\" <b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(coerce(tt.value, tt.p)))
		})
	}
}

func TestSerializeQueryString(t *testing.T) {
	root, err := Deserialize(`{"yql":"select * from sources * where true","ranking":{"features":{"query(q)":"a b"}},"trace":{}}`, MethodPost)
	require.NoError(t, err)

	got, err := Serialize(root, MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "yql=select+*+from+sources+*+where+true&ranking.features.query%28q%29=a+b", got)
}

func TestSerializeJSONIndent(t *testing.T) {
	root, err := Deserialize(`{"hits":5,"ranking":{"matchPhase":{}}}`, MethodPost)
	require.NoError(t, err)

	got, err := Serialize(root, MethodPost)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"hits\": 5,\n    \"ranking\": {\n        \"matchPhase\": {}\n    }\n}", got)
}

func TestSerializeEmptyTree(t *testing.T) {
	got, err := Serialize(NewRoot(), MethodPost)
	require.NoError(t, err)
	assert.Equal(t, "{}", got)

	got, err = Serialize(NewRoot(), MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestDeserializeKeepsKeyOrder(t *testing.T) {
	root, err := Deserialize(`{"timeout":"1s","yql":"q","hits":3}`, MethodPost)
	require.NoError(t, err)

	var names, ids []string
	for _, child := range root.Children {
		names = append(names, child.Name())
		ids = append(ids, child.ID)
	}
	assert.Equal(t, []string{"timeout", "yql", "hits"}, names)
	assert.Equal(t, []string{"0", "1", "2"}, ids)
}

func TestDeserializeScalars(t *testing.T) {
	root, err := Deserialize(`{"hits":10,"noCache":true,"yql":null,"timeout":1.50}`, MethodPost)
	require.NoError(t, err)

	values := map[string]string{}
	for _, child := range root.Children {
		values[child.Name()] = child.Value
	}
	assert.Equal(t, map[string]string{"hits": "10", "noCache": "true", "yql": "", "timeout": "1.5"}, values)
}

func TestDeserializeQueryString(t *testing.T) {
	root, err := Deserialize("?hits=10&ranking.profile=bm25&ranking.matchPhase.maxHits=100&yql=a+b%3D1", MethodGet)
	require.NoError(t, err)

	ranking := Resolve(root, "1")
	require.NotNil(t, ranking)
	assert.Equal(t, "ranking", ranking.Name())
	assert.Equal(t, "bm25", Resolve(root, "1.0").Value)
	assert.Equal(t, "100", Resolve(root, "1.1.0").Value)
	assert.Equal(t, "a b=1", Resolve(root, "2").Value)
}

func TestFormEscape(t *testing.T) {
	assert.Equal(t, "select+*+from+sources+*", formEscape("select * from sources *"))
	assert.Equal(t, "a%26b%3Dc%2Bd", formEscape("a&b=c+d"))

	root, err := Deserialize("yql=select+*+from+sources+*", MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "select * from sources *", root.Children[0].Value)
}

func TestDeserializeOverflowingNumbers(t *testing.T) {
	root, err := Deserialize(`{"hits":1e400,"offset":-1e400,"timeout":1e400}`, MethodPost)
	require.NoError(t, err)

	values := map[string]string{}
	for _, child := range root.Children {
		values[child.Name()] = child.Value
	}
	assert.Equal(t, map[string]string{"hits": "Infinity", "offset": "-Infinity", "timeout": "Infinity"}, values)

	text, err := Serialize(root, MethodPost)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"hits\": null,\n    \"offset\": null,\n    \"timeout\": null\n}", text)
}

// Dots separate path segments in query strings, so a bag key containing a
// dot cannot come back from its GET form.
func TestQueryStringDottedBagKey(t *testing.T) {
	root, err := Deserialize(`{"ranking":{"features":{"query(a.b)":"1"}}}`, MethodPost)
	require.NoError(t, err)

	text, err := Serialize(root, MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "ranking.features.query%28a.b%29=1", text)

	_, err = Deserialize(text, MethodGet)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Expected property 'query(a' to be String", schemaErr.Message)
}

func TestDeserializeQueryStringLaterKeyWins(t *testing.T) {
	root, err := Deserialize("hits=1&hits=2", MethodGet)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "2", root.Children[0].Value)
}

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		method     Method
		want       string
		wantSchema bool
	}{
		{"unknown root", `{"asd":1}`, MethodPost, "Unknown property 'asd' on root level", true},
		{"unknown nested", `{"ranking":{"matchPhase":{"asd":1}}}`, MethodPost, "Unknown property 'asd' under 'matchPhase'", true},
		{"object for leaf", `{"ranking":{"profile":{}}}`, MethodPost, "Expected property 'profile' to be String", true},
		{"value for parent", "trace=1", MethodGet, "Property 'trace' cannot have a value, supported children: explainLevel,level,profileDepth,query,timestamps", true},
		{"value for bag", `{"ranking":{"features":"x"}}`, MethodPost, "Property 'features' cannot have a value, supported children: ", true},
		{"bad escape", "yql=%zz", MethodGet, `invalid URL escape "%zz"`, false},
		{"trailing data", `{} {}`, MethodPost, "invalid character after top-level value", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.input, tt.method)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			var schemaErr *SchemaError
			assert.Equal(t, tt.wantSchema, errors.As(err, &schemaErr))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		`{"yql":"select * from music where true","hits":20,"offset":0}`,
		`{"ranking":{"profile":"bm25","features":{"query(w)":"0.3","query(v)":"2"},"softtimeout":{"enable":false,"factor":0.5}}}`,
		`{"presentation":{"bolding":true,"format":"json"},"trace":{"level":3},"model":{"restrict":"music"}}`,
		`{"streaming":{"userid":42,"groupname":"g"},"grouping":{"defaultMaxHits":-1},"timeout":2.5}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := Deserialize(input, MethodPost)
			require.NoError(t, err)

			text, err := Serialize(first, MethodPost)
			require.NoError(t, err)
			second, err := Deserialize(text, MethodPost)
			require.NoError(t, err)

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("tree changed after round trip (-first +second):\n%s", diff)
			}
		})
	}
}

func TestRoundTripQueryString(t *testing.T) {
	first, err := Deserialize(`{"yql":"select * from a where b contains \"c&d\"","ranking":{"location":"us"}}`, MethodPost)
	require.NoError(t, err)

	text, err := Serialize(first, MethodGet)
	require.NoError(t, err)
	second, err := Deserialize(text, MethodGet)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("tree changed after query string round trip (-first +second):\n%s", diff)
	}
}

func TestSerializeNoHTMLEscaping(t *testing.T) {
	root, err := Deserialize(`{"yql":"a < b && c > d"}`, MethodPost)
	require.NoError(t, err)

	text, err := Serialize(root, MethodPost)
	require.NoError(t, err)
	assert.Contains(t, text, `"a < b && c > d"`)
	assert.True(t, json.Valid([]byte(text)))
}
