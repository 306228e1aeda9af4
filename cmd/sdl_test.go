package cmd_test

import (
	"strings"
	"testing"

	"github.com/samwightt/gqlblind/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDL_RecoveredSchema(t *testing.T) {
	schemaPath := writeRecoveredSchema(t)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"sdl", "-s", schemaPath})
	require.NoError(t, err)

	assert.Contains(t, stdout, "type Query {")
	assert.Contains(t, stdout, "viewer: User")
	assert.Contains(t, stdout, "user(id: ID!): User")
	assert.Contains(t, stdout, "search(filter: PostFilter): [Post!]!")
	assert.Contains(t, stdout, "enum Role {")
	assert.Contains(t, stdout, "input PostFilter {")
	assert.Contains(t, stdout, "scalar Cursor")
	assert.Contains(t, stdout, "kind unresolved")
	assert.NotContains(t, stdout, "scalar String")
}

func TestSDL_RoundTrip(t *testing.T) {
	schemaPath := writeTestSchema(t, `
		type Query {
			node(id: ID!): Node
		}

		interface Node {
			id: ID!
		}

		type User implements Node {
			id: ID!
		}
	`)

	stdout, _, err := cmd.ExecuteWithArgs([]string{"sdl", "-s", schemaPath})
	require.NoError(t, err)

	reparsed := writeTestSchema(t, stdout)
	stdout, _, err = cmd.ExecuteWithArgs([]string{"types", "-s", reparsed, "-f", "text", "--kind", "interface", "--kind", "type"})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.ElementsMatch(t, []string{"type Query", "interface Node", "type User"}, lines)
}
