package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/samwightt/gqlblind/cmd"
	"github.com/samwightt/gqlblind/pkg/engine"
	"github.com/samwightt/gqlblind/pkg/gqltest"
	"github.com/samwightt/gqlblind/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const targetSchema = `
type Query {
  viewer: User
}

type User {
  id: ID!
  name: String
}
`

func writeWords(t *testing.T, words string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte(words), 0644))
	return path
}

// probeArgs returns the probe command line for url with fast retry settings.
func probeArgs(t *testing.T, url string, extra ...string) []string {
	t.Helper()
	args := []string{"probe", url,
		"-w", writeWords(t, "viewer\nuser\nid\nname\n"),
		"-c", "2",
		"--bucket-size", "4",
		"-m", "1",
		"-b", "1ms",
		"--timeout", "2s",
	}
	return append(args, extra...)
}

func loadOutput(t *testing.T, path string) *schema.Schema {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	s, err := schema.UnmarshalIntrospection(data)
	require.NoError(t, err)
	return s
}

func TestProbe_WritesOutputFile(t *testing.T) {
	srv := gqltest.New(t, targetSchema)
	out := filepath.Join(t.TempDir(), "schema.json")

	stdout, stderr, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-o", out))
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "msg=done")

	s := loadOutput(t, out)
	assert.True(t, s.Explored("Query"))
	assert.True(t, s.Explored("User"))

	stdout, _, err = cmd.ExecuteWithArgs([]string{"types", "-s", out, "-f", "text", "--kind", "type"})
	require.NoError(t, err)
	assert.Equal(t, "type Query\ntype User\n", stdout)

	stdout, _, err = cmd.ExecuteWithArgs([]string{"fields", "User", "-s", out, "-f", "text"})
	require.NoError(t, err)
	assert.Equal(t, "id: ID!\nname: String\n", stdout)
}

func TestProbe_PrintsToStdout(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	stdout, _, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL))
	require.NoError(t, err)

	s, err := schema.UnmarshalIntrospection([]byte(stdout))
	require.NoError(t, err)
	q, ok := s.Lookup("Query")
	require.True(t, ok)
	assert.NotNil(t, q.Field("viewer"))
	assert.Nil(t, q.Field("user"))
}

func TestProbe_DocumentFromStdin(t *testing.T) {
	srv := gqltest.New(t, targetSchema)
	out := filepath.Join(t.TempDir(), "schema.json")

	stdin := bytes.NewBufferString("query { viewer { FUZZ } }")
	_, _, err := cmd.ExecuteWithArgsAndStdin(probeArgs(t, srv.URL, "-o", out, "-d", "-"), stdin)
	require.NoError(t, err)

	s := loadOutput(t, out)
	user, ok := s.Lookup("User")
	require.True(t, ok)
	assert.NotNil(t, user.Field("id"))
	assert.NotNil(t, user.Field("name"))
	assert.True(t, s.Explored("Query"))
}

func TestProbe_DocumentWithTwoPlaceholders(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, stderr, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-d", "query { FUZZ { FUZZ } }"))
	require.ErrorIs(t, err, cmd.ErrInvalidDocument)
	assert.Contains(t, stderr, "placeholder appears more than once")
	assert.Contains(t, stderr, "document:1:16")
	assert.Equal(t, 0, srv.Requests())
}

func TestProbe_DocumentWithoutPlaceholder(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, stderr, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-d", "query { viewer { id } }"))
	require.ErrorIs(t, err, cmd.ErrInvalidDocument)
	assert.Contains(t, stderr, "document has no FUZZ placeholder")
	assert.Equal(t, 0, srv.Requests())
}

func TestProbe_DocumentSyntaxError(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, stderr, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-d", "query { viewer { FUZZ }"))
	require.ErrorIs(t, err, cmd.ErrInvalidDocument)
	assert.Contains(t, stderr, "<EOF>")
}

func TestProbe_InvalidConfiguration(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, _, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-c", "0", "--bucket-size", "0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "concurrent_requests must be at least 1, got 0")
	assert.Contains(t, err.Error(), "bucket_size must be at least 1, got 0")

	_, _, err = cmd.ExecuteWithArgs(probeArgs(t, "ftp://example.com/graphql"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url scheme \"ftp\" is not supported")
}

func TestProbe_ConfigFileIsOverriddenByFlags(t *testing.T) {
	srv := gqltest.New(t, targetSchema)
	configPath := filepath.Join(t.TempDir(), "gqlblind.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("concurrent_requests: 0\nbucket_size: 4\n"), 0644))

	_, _, err := cmd.ExecuteWithArgs([]string{"probe", srv.URL, "--config", configPath, "-w", writeWords(t, "viewer\n")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrent_requests must be at least 1, got 0")

	_, _, err = cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "--config", configPath))
	require.NoError(t, err)
}

func TestProbe_MissingConfigFile(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, _, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "--config", filepath.Join(t.TempDir(), "gqlblind.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
	assert.Equal(t, 0, srv.Requests())
}

func TestProbe_Unreachable(t *testing.T) {
	_, _, err := cmd.ExecuteWithArgs(probeArgs(t, "http://127.0.0.1:1/graphql", "-m", "0"))
	require.ErrorIs(t, err, engine.ErrUnreachable)
}

func TestProbe_ResumeFromExploredSeed(t *testing.T) {
	srv := gqltest.New(t, targetSchema)
	seed := writeTestSchema(t, targetSchema)
	out := filepath.Join(t.TempDir(), "schema.json")

	_, stderr, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-i", seed, "-o", out))
	require.NoError(t, err)
	assert.Contains(t, stderr, "loaded seed schema")

	// Only the three root probes are sent.
	assert.Equal(t, 3, srv.Requests())

	s := loadOutput(t, out)
	assert.True(t, s.Explored("User"))
}

func TestProbe_MissingSeedSchema(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, _, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-i", filepath.Join(t.TempDir(), "missing.json")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load seed schema")
	assert.Equal(t, 0, srv.Requests())
}

func TestProbe_MetricsListen(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, stderr, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "--metrics-listen", "127.0.0.1:0"))
	require.NoError(t, err)
	assert.Contains(t, stderr, "serving metrics")
}

func TestProbe_MissingHeaderFile(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, _, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-H", filepath.Join(t.TempDir(), "headers.txt")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open header file")
}

func TestProbe_ValidateWordlist(t *testing.T) {
	srv := gqltest.New(t, targetSchema)
	args := probeArgs(t, srv.URL, "-V", "-w", writeWords(t, "viewer\nnot-a-name\n1st\nid\nname\n"))

	_, stderr, err := cmd.ExecuteWithArgs(args)
	require.NoError(t, err)
	assert.Contains(t, stderr, "dropped invalid names from the wordlist")
	assert.Contains(t, stderr, "count=2")
}

func TestProbe_EmptyWordlist(t *testing.T) {
	srv := gqltest.New(t, targetSchema)

	_, _, err := cmd.ExecuteWithArgs(probeArgs(t, srv.URL, "-V", "-w", writeWords(t, "not-a-name\n")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wordlist is empty")
}
