package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/samwightt/gqlblind/pkg/schema"
	gqlparser "github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const maxSuggestionDistance = 5

func findClosest(input string, candidates []string) string {
	minDist := -1
	closest := ""
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(input, c)
		if minDist == -1 || dist < minDist {
			minDist = dist
			closest = c
		}
	}
	if minDist > maxSuggestionDistance {
		return ""
	}
	return closest
}

// lookupType returns the named type or an error with a "did you mean"
// suggestion among the types accepted by keep. what names the expected kind
// of type in the message, e.g. "type" or "enum".
func lookupType(s *schema.Schema, name, what string, keep func(*schema.TypeDef) bool) (*schema.TypeDef, error) {
	if def, ok := s.Lookup(name); ok {
		return def, nil
	}
	var names []string
	for _, def := range s.Types() {
		if keep == nil || keep(def) {
			names = append(names, def.Name)
		}
	}
	if suggestion := findClosest(name, names); suggestion != "" {
		return nil, fmt.Errorf("%s '%s' does not exist in schema, did you mean '%s'?", what, name, suggestion)
	}
	return nil, fmt.Errorf("%s '%s' does not exist in schema", what, name)
}

func kindToString(kind schema.Kind) string {
	switch kind {
	case schema.Object:
		return "type"
	case schema.InputObject:
		return "input"
	case schema.Unknown, "":
		return "unknown"
	default:
		return strings.ToLower(string(kind))
	}
}

// isSDLFile reports whether path names a schema in SDL rather than an
// introspection result.
func isSDLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".graphql", ".graphqls", ".gql":
		return true
	}
	return false
}

// readSchemaFile loads a schema from introspection JSON or SDL.
func readSchemaFile(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("schema file does not exist: %s", path)
		}
		return nil, err
	}

	if !isSDLFile(path) {
		return schema.UnmarshalIntrospection(data)
	}

	src, err := gqlparser.LoadSchema(&ast.Source{Name: filepath.Base(path), Input: string(data)})
	if err != nil {
		var parsingError *gqlerror.Error
		if errors.As(err, &parsingError) {
			return nil, fmt.Errorf("GraphQL schema parsing error: %v", parsingError)
		}
		return nil, fmt.Errorf("unexpected error: %v", err)
	}
	return schema.FromAST(src), nil
}

func loadCliForSchema() (*schema.Schema, error) {
	return readSchemaFile(schemaFilePath)
}

// completeTypeNames returns sorted type names containing toComplete, for
// shell completion.
func completeTypeNames(toComplete string, keep func(*schema.TypeDef) bool) ([]string, error) {
	s, err := loadCliForSchema()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, def := range s.Types() {
		if keep != nil && !keep(def) {
			continue
		}
		if strings.Contains(strings.ToLower(def.Name), strings.ToLower(toComplete)) {
			names = append(names, def.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}
