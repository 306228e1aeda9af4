package cmd_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samwightt/gqlblind/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestSchema(t *testing.T, sdl string) string {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.graphql")
	err := os.WriteFile(schemaPath, []byte(sdl), 0644)
	require.NoError(t, err)
	return schemaPath
}

func TestFields_ForType(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "User", "-s", schemaPath, "-f", "text"})
	require.NoError(t, err)
	assert.Equal(t, "id: ID!\nname: String\nrole: Role\n", stdout)
}

func TestFields_AllTypes(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "-s", schemaPath, "-f", "text"})
	require.NoError(t, err)

	assert.Contains(t, stdout, "Query.viewer: User\n")
	assert.Contains(t, stdout, "Query.user(id: ID!): User\n")
	assert.Contains(t, stdout, "Query.search(filter: PostFilter): [Post!]!\n")
	assert.Contains(t, stdout, "Query.after: Cursor\n")
	assert.Contains(t, stdout, "User.role: Role\n")
	assert.Contains(t, stdout, "PostFilter.term: String!\n")
}

func TestFields_InputObject(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "PostFilter", "-s", schemaPath, "-f", "json"})
	require.NoError(t, err)

	var fields []cmd.FieldInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &fields))
	require.Len(t, fields, 1)
	assert.Equal(t, "term", fields[0].Name)
	assert.Equal(t, "String!", fields[0].Type)
	assert.True(t, fields[0].Input)
}

func TestFields_HasArg(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "-s", schemaPath, "-f", "text", "--has-arg", "filter"})
	require.NoError(t, err)
	assert.Equal(t, "Query.search(filter: PostFilter): [Post!]!\n", stdout)
}

func TestFields_Returns(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "-s", schemaPath, "-f", "text", "--returns", "User"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.ElementsMatch(t, []string{"Query.viewer: User", "Query.user(id: ID!): User"}, lines)
}

func TestFields_RequiredAndNullable(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "User", "-s", schemaPath, "-f", "text", "--required"})
	require.NoError(t, err)
	assert.Equal(t, "id: ID!\n", stdout)

	stdout, _, err = cmd.ExecuteWithArgs([]string{"fields", "User", "-s", schemaPath, "-f", "text", "--nullable"})
	require.NoError(t, err)
	assert.Equal(t, "name: String\nrole: Role\n", stdout)

	_, _, err = cmd.ExecuteWithArgs([]string{"fields", "User", "-s", schemaPath, "--required", "--nullable"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used together")
}

func TestFields_NameGlob(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "Query", "-s", schemaPath, "-f", "text", "--name", "*er"})
	require.NoError(t, err)
	assert.Equal(t, "viewer: User\nuser(id: ID!): User\nafter: Cursor\n", stdout)
}

func TestFields_NameRegex(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "-s", schemaPath, "-f", "text", "--name-regex", "^(id|term)$"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.ElementsMatch(t, []string{"User.id: ID!", "PostFilter.term: String!"}, lines)

	_, _, err = cmd.ExecuteWithArgs([]string{"fields", "-s", schemaPath, "--name-regex", "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regex pattern")
}

func TestFields_UnexploredTypeIsEmpty(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, stderr, err := cmd.ExecuteWithArgs([]string{"fields", "Post", "-s", schemaPath, "-f", "text"})
	require.NoError(t, err)
	assert.Equal(t, "\n", stdout)
	assert.Contains(t, stderr, "No fields found")
}

func TestFields_TypeNotFound(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	_, _, err := cmd.ExecuteWithArgs([]string{"fields", "Usr", "-s", schemaPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type 'Usr' does not exist in schema, did you mean 'User'?")
}

func TestFields_PrettyFormat(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "PostFilter", "-s", schemaPath, "-f", "pretty"})
	require.NoError(t, err)
	assert.Contains(t, stdout, "term")
	assert.Contains(t, stdout, "input field")
}

func TestFields_SDLSchema(t *testing.T) {
	schemaPath := writeTestSchema(t, `
		type Query {
			users(query: String!, limit: Int): [User!]!
		}

		type User {
			id: ID!
		}
	`)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"fields", "Query", "-s", schemaPath, "-f", "text"})
	require.NoError(t, err)
	assert.Equal(t, "users(query: String!, limit: Int): [User!]!\n", stdout)
}
