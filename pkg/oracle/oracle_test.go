package oracle

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/samwightt/gqlblind/pkg/client"
	"github.com/samwightt/gqlblind/pkg/config"
	"github.com/samwightt/gqlblind/pkg/gqltest"
	"github.com/samwightt/gqlblind/pkg/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const blogSDL = `
type Query {
  viewer: User
  user(id: ID!): User
  users(role: Role): [User!]!
  search(filter: SearchFilter, limit: Int = 10): [SearchResult!]!
  role: Role
}

type Mutation {
  publish(id: ID!): Post
}

type User {
  id: ID!
  name: String
  friends(first: Int): [User!]!
}

type Post {
  id: ID!
  title: String!
}

union SearchResult = User | Post

enum Role {
  ADMIN
  EDITOR
}

input SearchFilter {
  term: String!
  range: DateRange
}

input DateRange {
  from: Int
  to: Int
}
`

func testConfig(url string) config.Config {
	cfg := config.Default()
	cfg.URL = url
	cfg.Concurrency = 4
	cfg.BucketSize = 4
	cfg.MaxRetries = 1
	cfg.Backoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	cfg.Timeout = 2 * time.Second
	return cfg
}

func newTestOracle(t *testing.T, cfg config.Config) *Oracle {
	t.Helper()
	c, err := client.New(cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return New(c, cfg, nil)
}

func probeInto(t *testing.T, o *Oracle, target Target, words ...string) (*schema.Schema, *Fragment) {
	t.Helper()
	frag, err := o.Probe(context.Background(), target, words)
	require.NoError(t, err)
	s := schema.New()
	s.MergeAll(frag.Facts())
	return s, frag
}

func lookup(t *testing.T, s *schema.Schema, name string) *schema.TypeDef {
	t.Helper()
	def, ok := s.Lookup(name)
	require.True(t, ok, "type %s missing", name)
	return def
}

func TestProbe_RootFields(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	o := newTestOracle(t, testConfig(srv.URL))

	s, frag := probeInto(t, o, Target{TypeName: "Query", Document: "query { FUZZ }"},
		"viewer", "user", "search", "role", "missing", "id", "filter", "limit", "first", "term")
	assert.Empty(t, frag.InconclusiveNames())

	q := lookup(t, s, "Query")
	var names []string
	for _, f := range q.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"role", "search", "user", "viewer"}, names)

	assert.Equal(t, "User", q.Field("viewer").Type.String())
	assert.Empty(t, q.Field("viewer").Args)

	user := q.Field("user")
	require.Len(t, user.Args, 1)
	assert.Equal(t, "id", user.Args[0].Name)
	assert.Equal(t, "ID!", user.Args[0].Type.String())

	search := q.Field("search")
	assert.Equal(t, "[SearchResult!]!", search.Type.String())
	require.NotNil(t, search.Arg("filter"))
	require.NotNil(t, search.Arg("limit"))
	assert.Equal(t, "SearchFilter", search.Arg("filter").Type.String())
	assert.Equal(t, "Int", search.Arg("limit").Type.String())

	// A required input field reported for "{}" is recorded on the spot.
	assert.Equal(t, schema.InputObject, s.Kind("SearchFilter"))
	filter := lookup(t, s, "SearchFilter")
	require.NotNil(t, filter.InputField("term"))
	assert.Equal(t, "String!", filter.InputField("term").Type.String())

	assert.Equal(t, "Role", q.Field("role").Type.String())
	assert.Equal(t, schema.Unknown, s.Kind("Role"))
	assert.Equal(t, schema.Object, s.Kind("User"))
	assert.Equal(t, schema.Scalar, s.Kind("Int"))
}

func TestProbe_SuggestionsWidenTheWordlist(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	o := newTestOracle(t, testConfig(srv.URL))

	s, _ := probeInto(t, o, Target{TypeName: "User", Document: "query { viewer { FUZZ } }"},
		"nam", "friends", "first")

	u := lookup(t, s, "User")
	require.NotNil(t, u.Field("name"))
	assert.Equal(t, "String", u.Field("name").Type.String())

	friends := u.Field("friends")
	require.NotNil(t, friends)
	assert.Equal(t, "[User!]!", friends.Type.String())
	require.NotNil(t, friends.Arg("first"))
	assert.Equal(t, "Int", friends.Arg("first").Type.String())

	assert.Nil(t, u.Field("nam"))
}

func TestProbe_Union(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	o := newTestOracle(t, testConfig(srv.URL))

	s, _ := probeInto(t, o, Target{TypeName: "SearchResult", Document: "query { search { FUZZ } }"},
		"id", "title")

	union := lookup(t, s, "SearchResult")
	assert.Equal(t, schema.Union, union.Kind)
	assert.Empty(t, union.Fields)
	assert.ElementsMatch(t, []string{"Post", "User"}, union.PossibleTypes)
	assert.Equal(t, schema.Object, s.Kind("Post"))
}

func TestProbe_InputObject(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	o := newTestOracle(t, testConfig(srv.URL))

	s, frag := probeInto(t, o, Target{
		TypeName: "SearchFilter",
		Document: "query { search(filter: { FUZZ: 7 }) { __typename } }",
		Input:    true,
	}, "term", "range", "lol", "from")
	assert.Empty(t, frag.InconclusiveNames())

	filter := lookup(t, s, "SearchFilter")
	assert.Equal(t, schema.InputObject, filter.Kind)
	require.Len(t, filter.InputFields, 2)
	assert.Equal(t, "String!", filter.InputField("term").Type.String())
	assert.Equal(t, "DateRange", filter.InputField("range").Type.String())
	assert.Equal(t, schema.InputObject, s.Kind("DateRange"))
}

func TestProbe_EnumValues(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	cfg := testConfig(srv.URL)
	cfg.ProbeEnumValues = true
	o := newTestOracle(t, cfg)

	s, _ := probeInto(t, o, Target{TypeName: "Query", Document: "query { FUZZ }"},
		"users", "role", "admin", "editor", "nobody")

	users := lookup(t, s, "Query").Field("users")
	require.NotNil(t, users)
	require.NotNil(t, users.Arg("role"))
	assert.Equal(t, "Role", users.Arg("role").Type.String())

	role := lookup(t, s, "Role")
	assert.Equal(t, schema.Enum, role.Kind)
	assert.Equal(t, []string{"ADMIN", "EDITOR"}, role.EnumValues)
}

func TestProbe_TransportNoiseIsNeverANegative(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	srv.FailWhen(func(q string) bool { return strings.Contains(q, "viewer") }, http.StatusServiceUnavailable)
	o := newTestOracle(t, testConfig(srv.URL))

	s, frag := probeInto(t, o, Target{TypeName: "Query", Document: "query { FUZZ }"},
		"viewer", "user", "role")

	q := lookup(t, s, "Query")
	assert.Nil(t, q.Field("viewer"))
	assert.NotNil(t, q.Field("user"))
	assert.NotNil(t, q.Field("role"))
	assert.Contains(t, frag.InconclusiveNames(), "Query.viewer")
}

type senderFunc func(ctx context.Context, doc string) (*client.Response, error)

func (f senderFunc) Send(ctx context.Context, doc string, _ map[string]any) (*client.Response, error) {
	return f(ctx, doc)
}

func errorResponse(msgs ...string) *client.Response {
	resp := &client.Response{StatusCode: http.StatusOK, Data: []byte("null")}
	for _, m := range msgs {
		resp.Errors = append(resp.Errors, client.GraphQLError{Message: m})
	}
	return resp
}

func TestDiscover_AbortedBucketIsSplit(t *testing.T) {
	var requests atomic.Int32
	sender := senderFunc(func(_ context.Context, doc string) (*client.Response, error) {
		requests.Add(1)
		switch doc {
		case "query { a b c }":
			return errorResponse("Too many validation errors, error limit reached. Validation aborted."), nil
		case "query { b }":
			return errorResponse(`Cannot query field "b" on type "Query".`), nil
		default:
			return &client.Response{StatusCode: http.StatusOK, Data: []byte(`{}`)}, nil
		}
	})
	cfg := config.Default()
	cfg.BucketSize = 3
	o := New(sender, cfg, nil)

	d := discovery{doc: "query { FUZZ }", ns: NamespaceField, owner: "Query"}
	found, err := o.discover(context.Background(), d, []string{"a", "b", "c"}, NewFragment("Query"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, found.names)
	assert.EqualValues(t, 4, requests.Load())
}

func TestDiscover_UnclassifiedMessagesAreInconclusive(t *testing.T) {
	sender := senderFunc(func(context.Context, string) (*client.Response, error) {
		return errorResponse(`Cannot query field "b" on type "Query".`, "something odd happened"), nil
	})
	o := New(sender, config.Default(), nil)
	frag := NewFragment("Query")

	d := discovery{doc: "query { FUZZ }", ns: NamespaceField, owner: "Query"}
	found, err := o.discover(context.Background(), d, []string{"a", "b"}, frag)
	require.NoError(t, err)
	assert.Empty(t, found.names)
	assert.Equal(t, []string{"Query.a"}, frag.InconclusiveNames())
}

func TestTypeSlot_ExecutionErrorsStillAccept(t *testing.T) {
	sender := senderFunc(func(_ context.Context, doc string) (*client.Response, error) {
		for _, lit := range []string{"id: null)", "id: 7)", `id: "7")`} {
			if strings.Contains(doc, lit) {
				return &client.Response{
					StatusCode: http.StatusOK,
					Data:       []byte(`{"user":null}`),
					Errors:     []client.GraphQLError{{Message: "User not found"}},
				}, nil
			}
		}
		value := doc[strings.Index(doc, "id: ")+len("id: ") : strings.Index(doc, ")")]
		return errorResponse("ID cannot represent a non-string and non-integer value: " + value), nil
	})
	o := New(sender, config.Default(), nil)

	got, ok, err := o.typeSlot(context.Background(), "query { user(FUZZ: 7) { __typename } }", "id", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ID", got.ref.String())
	assert.Equal(t, schema.Scalar, got.kind)
}

func TestProbe_FatalErrorAborts(t *testing.T) {
	sender := senderFunc(func(context.Context, string) (*client.Response, error) {
		return nil, &client.RequestError{Attempts: 1, Err: &net.DNSError{Err: "no such host", Name: "api.invalid", IsNotFound: true}}
	})
	o := New(sender, config.Default(), nil)

	_, err := o.Probe(context.Background(), Target{TypeName: "Query", Document: "query { FUZZ }"}, []string{"a"})
	require.Error(t, err)
	var dnsErr *net.DNSError
	assert.True(t, errors.As(err, &dnsErr))
}

func TestProbe_Canceled(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	o := newTestOracle(t, testConfig(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Probe(ctx, Target{TypeName: "Query", Document: "query { FUZZ }"}, []string{"viewer"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbe_RejectsDocumentWithoutPlaceholder(t *testing.T) {
	o := New(senderFunc(nil), config.Default(), nil)
	_, err := o.Probe(context.Background(), Target{TypeName: "Query", Document: "query { viewer }"}, nil)
	assert.Error(t, err)
}

func TestProbeTypename(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	o := newTestOracle(t, testConfig(srv.URL))

	tests := []struct {
		doc   string
		want  string
		input bool
	}{
		{doc: "query { FUZZ }", want: "Query"},
		{doc: "query { viewer { friends { FUZZ } } }", want: "User"},
		{doc: "query { search { FUZZ } }", want: "SearchResult"},
		{doc: "mutation { publish(id: 1) { FUZZ } }", want: "Post"},
		{doc: "query { search(filter: { range: { FUZZ: 7 } }) { __typename } }", want: "DateRange", input: true},
	}
	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			name, input, err := o.ProbeTypename(context.Background(), tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
			assert.Equal(t, tt.input, input)
		})
	}
}

func TestProbeTypename_PathDocumentsReachTheirTarget(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	o := newTestOracle(t, testConfig(srv.URL))

	s := schema.FromAST(srv.Schema())
	for _, target := range []string{"User", "Post", "SearchFilter", "DateRange"} {
		t.Run(target, func(t *testing.T) {
			p, ok := s.PathFromRoot(target)
			require.True(t, ok)

			name, input, err := o.ProbeTypename(context.Background(), p.Document(Placeholder))
			require.NoError(t, err)
			assert.Equal(t, target, name)
			assert.Equal(t, p.Input(), input)
		})
	}
}

func TestProbeRoots(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	o := newTestOracle(t, testConfig(srv.URL))

	roots, err := o.ProbeRoots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[schema.Operation]string{
		schema.OperationQuery:    "Query",
		schema.OperationMutation: "Mutation",
	}, roots)
}

func TestProbeRoots_Unreachable(t *testing.T) {
	srv := gqltest.New(t, blogSDL)
	cfg := testConfig(srv.URL)
	srv.Close()
	o := newTestOracle(t, cfg)

	_, err := o.ProbeRoots(context.Background())
	require.Error(t, err)
	assert.True(t, client.IsInconclusive(err))
}

func TestSubstitute(t *testing.T) {
	assert.Equal(t, "query { a b }", substitute("query { FUZZ }", false, "a b"))
	assert.Equal(t, "query { f(a: 7, b: 7) }", substitute("query { f(FUZZ: 7) }", true, "a: 7, b: 7"))
	assert.Equal(t, `query { f(x: { a: "s" }) }`, substitute(`query { f(x: { FUZZ: 1 }) }`, true, `a: "s"`))
}

func TestCandidateNames(t *testing.T) {
	assert.Equal(t, []string{"viewer", "user"}, candidateNames([]string{"viewer", "", "__typename", "user", "viewer", " "}))
}

func TestFallbackScalar(t *testing.T) {
	var accepted [numSentinels]bool
	assert.True(t, fallbackScalar(accepted).IsZero())

	accepted[sentinelInt] = true
	assert.Equal(t, "Int", fallbackScalar(accepted).String())
	accepted[sentinelString] = true
	assert.Equal(t, "ID", fallbackScalar(accepted).String())
	accepted[sentinelString] = false
	accepted[sentinelFloat] = true
	assert.Equal(t, "Float", fallbackScalar(accepted).String())
}

func TestFragment_FactsAreOrdered(t *testing.T) {
	frag := NewFragment("User")
	frag.Add(
		schema.Fact{TypeName: "Post", Kind: schema.Object},
		schema.Fact{TypeName: "User", Field: &schema.Field{Name: "posts", Type: schema.MustParseTypeRef("[Post!]")}},
		schema.Fact{TypeName: "Role", EnumValue: "ADMIN"},
		schema.Fact{TypeName: "User", Field: &schema.Field{Name: "id", Type: schema.MustParseTypeRef("ID!")}},
		schema.Fact{TypeName: "User", Kind: schema.Object},
	)

	var got []string
	for _, f := range frag.Facts() {
		got = append(got, f.TypeName+":"+factMember(f))
	}
	assert.Equal(t, []string{"User:", "User:id", "User:posts", "Post:", "Role:ADMIN"}, got)
	assert.Equal(t, 5, frag.Len())
}
