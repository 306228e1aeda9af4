package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalIntrospection_Shape(t *testing.T) {
	s := socialSchema()

	data, err := s.MarshalIntrospection()
	require.NoError(t, err)

	var doc struct {
		Data struct {
			Schema struct {
				QueryType    struct{ Name string } `json:"queryType"`
				MutationType *struct{ Name string } `json:"mutationType"`
				Types        []struct {
					Kind        string  `json:"kind"`
					Name        string  `json:"name"`
					Description *string `json:"description"`
				} `json:"types"`
				Directives []any `json:"directives"`
			} `json:"__schema"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "Query", doc.Data.Schema.QueryType.Name)
	assert.Nil(t, doc.Data.Schema.MutationType)
	assert.NotNil(t, doc.Data.Schema.Directives)

	kinds := map[string]string{}
	for _, ty := range doc.Data.Schema.Types {
		kinds[ty.Name] = ty.Kind
	}
	assert.Equal(t, "OBJECT", kinds["User"])
	assert.Equal(t, "UNION", kinds["SearchResult"])
	assert.Equal(t, "INPUT_OBJECT", kinds["SearchFilter"])
	for _, builtin := range BuiltinScalars {
		assert.Equal(t, "SCALAR", kinds[builtin], builtin)
	}
}

func TestMarshalIntrospection_UnknownAsMarkedScalar(t *testing.T) {
	s := New()
	s.Merge(Fact{TypeName: "Query", Field: &Field{Name: "when", Type: MustParseTypeRef("DateTime")}})

	data, err := s.MarshalIntrospection()
	require.NoError(t, err)
	assert.Contains(t, string(data), UnknownDescription)

	back, err := UnmarshalIntrospection(data)
	require.NoError(t, err)
	assert.Equal(t, Unknown, back.Kind("DateTime"))
}

func TestIntrospection_RoundTrip(t *testing.T) {
	s := socialSchema()
	s.SetRoot(OperationMutation, "Mutation")
	s.MergeAll([]Fact{
		field("Mutation", "like", "Post", arg("id", "ID!"), arg("reaction", "Reaction")),
		{TypeName: "Reaction", Kind: Enum, EnumValue: "LIKE"},
		{TypeName: "Reaction", EnumValue: "LOVE"},
		{TypeName: "Node", Kind: Interface, PossibleType: "User"},
		field("Node", "id", "ID!"),
	})

	first, err := s.MarshalIntrospection()
	require.NoError(t, err)

	back, err := UnmarshalIntrospection(first)
	require.NoError(t, err)

	second, err := back.MarshalIntrospection()
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, describeTypes(s), describeTypes(back))

	assert.Equal(t, "Mutation", back.Root(OperationMutation))
	node, ok := back.Lookup("Node")
	require.True(t, ok)
	assert.Equal(t, Interface, node.Kind)
	assert.Equal(t, []string{"User"}, node.PossibleTypes)

	user, _ := back.Lookup("User")
	require.NotNil(t, user.Field("friends"))
	assert.Equal(t, "[User!]!", user.Field("friends").Type.String())
}

func TestIntrospection_RoundTripLeavesOutUnusedBuiltins(t *testing.T) {
	s := New()
	s.Merge(field("Query", "name", "String"))

	data, err := s.MarshalIntrospection()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Boolean"`)

	back, err := UnmarshalIntrospection(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"OBJECT Query name: String", "SCALAR String"}, describeTypes(back))
	_, ok := back.Lookup("Boolean")
	assert.False(t, ok)
}

// describeTypes lists every type with its kind and members, in schema order.
func describeTypes(s *Schema) []string {
	var out []string
	for _, td := range s.Types() {
		line := fmt.Sprintf("%s %s", td.Kind, td.Name)
		for _, f := range td.Fields {
			var args []string
			for _, a := range f.Args {
				args = append(args, a.Name+": "+a.Type.String())
			}
			line += fmt.Sprintf(" %s", f.Name)
			if len(args) > 0 {
				line += "(" + strings.Join(args, ", ") + ")"
			}
			line += ": " + f.Type.String()
		}
		for _, f := range td.InputFields {
			line += fmt.Sprintf(" %s: %s", f.Name, f.Type.String())
		}
		if len(td.EnumValues) > 0 {
			line += " values=" + strings.Join(td.EnumValues, "|")
		}
		if len(td.PossibleTypes) > 0 {
			line += " members=" + strings.Join(td.PossibleTypes, "|")
		}
		out = append(out, line)
	}
	return out
}

func TestUnmarshalIntrospection_BareSchema(t *testing.T) {
	data := []byte(`{"__schema": {
		"queryType": {"name": "Root"},
		"mutationType": null,
		"subscriptionType": null,
		"types": [
			{"kind": "OBJECT", "name": "Root", "fields": [
				{"name": "hello", "args": [], "type": {"kind": "NON_NULL", "name": null, "ofType": {"kind": "SCALAR", "name": "String", "ofType": null}}}
			]},
			{"kind": "SCALAR", "name": "String"},
			{"kind": "OBJECT", "name": "__Schema", "fields": []}
		],
		"directives": []
	}}`)

	s, err := UnmarshalIntrospection(data)
	require.NoError(t, err)

	assert.Equal(t, "Root", s.QueryType())
	_, ok := s.Lookup("__Schema")
	assert.False(t, ok)

	root, ok := s.Lookup("Root")
	require.True(t, ok)
	assert.Equal(t, "String!", root.Field("hello").Type.String())
}

func TestUnmarshalIntrospection_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{"data":`},
		{"no schema", `{"data": {}}`},
		{"nameless type", `{"__schema": {"types": [{"kind": "OBJECT"}]}}`},
		{"wrapper without ofType", `{"__schema": {"types": [{"kind": "OBJECT", "name": "Q", "fields": [{"name": "f", "type": {"kind": "LIST", "ofType": null}}]}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalIntrospection([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to parse")
		})
	}
}
