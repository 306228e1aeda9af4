// Package gqltest runs an in-process GraphQL endpoint that validates incoming
// documents against an SDL schema and answers the way a production server
// with introspection disabled would.
package gqltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	gqlparser "github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Server is a GraphQL endpoint backed by an SDL schema. Valid documents get
// data with every top-level field resolved to null and __typename resolved
// to the root type name. Invalid documents get the validator's messages.
type Server struct {
	*httptest.Server

	schema   *ast.Schema
	requests atomic.Int64

	mu     sync.Mutex
	faults []fault
}

type fault struct {
	match  func(query string) bool
	status int
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   any           `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// New starts a server for sdl and stops it when the test ends.
func New(t testing.TB, sdl string) *Server {
	t.Helper()

	s, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		t.Fatalf("gqltest: failed to load schema: %v", err)
	}

	srv := &Server{schema: s}
	srv.Server = httptest.NewServer(http.HandlerFunc(srv.handle))
	t.Cleanup(srv.Close)
	return srv
}

// Schema returns the schema the server validates against.
func (s *Server) Schema() *ast.Schema {
	return s.schema
}

// FailWhen makes every request whose query satisfies match fail with the
// given HTTP status and a plain-text body.
func (s *Server) FailWhen(match func(query string) bool, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{match: match, status: status})
}

// Requests returns how many requests the server has received.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	if status, ok := s.fault(req.Query); ok {
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.execute(req.Query))
}

func (s *Server) fault(query string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.faults {
		if f.match(query) {
			return f.status, true
		}
	}
	return 0, false
}

func (s *Server) execute(query string) response {
	doc, errs := gqlparser.LoadQuery(s.schema, query)
	if len(errs) > 0 {
		return response{Errors: errs}
	}

	op := doc.Operations[0]
	root := s.rootFor(op.Operation)
	data := map[string]any{}
	for _, sel := range op.SelectionSet {
		f, ok := sel.(*ast.Field)
		if !ok {
			continue
		}
		key := f.Alias
		if key == "" {
			key = f.Name
		}
		if f.Name == "__typename" {
			data[key] = root
		} else {
			data[key] = nil
		}
	}
	return response{Data: data}
}

func (s *Server) rootFor(op ast.Operation) string {
	var def *ast.Definition
	switch op {
	case ast.Mutation:
		def = s.schema.Mutation
	case ast.Subscription:
		def = s.schema.Subscription
	default:
		def = s.schema.Query
	}
	if def == nil {
		return ""
	}
	return def.Name
}
