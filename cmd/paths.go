/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/samwightt/gqlblind/pkg/oracle"
	"github.com/samwightt/gqlblind/pkg/render"
	"github.com/samwightt/gqlblind/pkg/schema"
	"github.com/spf13/cobra"
)

type pathsOptions struct {
	maxDepth int
	from     string
	shortest bool
	through  string
	document bool
}

// pathStep is a selection of fieldName on typeName, or an inline fragment
// on typeName when fragment is set.
type pathStep struct {
	typeName  string
	fieldName string
	hasArgs   bool
	fragment  string
}

func formatPathStep(step pathStep) string {
	switch {
	case step.fragment != "":
		return "... on " + step.fragment
	case step.hasArgs:
		return fmt.Sprintf("%s.%s(...)", step.typeName, step.fieldName)
	default:
		return fmt.Sprintf("%s.%s", step.typeName, step.fieldName)
	}
}

func formatPath(steps []pathStep, targetType string) string {
	parts := make([]string, 0, len(steps)+1)
	for _, step := range steps {
		parts = append(parts, formatPathStep(step))
	}
	return strings.Join(append(parts, targetType), " -> ")
}

func formatPathText(p PathInfo) string {
	if p.Document != "" {
		return p.Path + "\n" + p.Document
	}
	return p.Path
}

func pathRow(p PathInfo) []string {
	if p.Document != "" {
		return []string{p.Path, p.Document}
	}
	return []string{p.Path}
}

// foundPath is a path with the data needed by the --shortest and --through
// filters.
type foundPath struct {
	steps []pathStep
	text  string
}

func (p foundPath) passesThrough(typeName string) bool {
	for _, step := range p.steps {
		if step.typeName == typeName {
			return true
		}
	}
	return false
}

// findPaths lists every path of at most maxDepth steps from fromType to
// targetType that visits no type twice. Selections continue through
// objects, interfaces and unions; unions and interfaces also continue into
// their possible types with an inline fragment.
func findPaths(s *schema.Schema, fromType, targetType string, maxDepth int) []foundPath {
	types := map[string]*schema.TypeDef{}
	for _, t := range s.Types() {
		types[t.Name] = t
	}

	type searchState struct {
		at      string
		steps   []pathStep
		visited map[string]bool
	}

	var results []foundPath
	queue := []searchState{{at: fromType, visited: map[string]bool{fromType: true}}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		t := types[current.at]
		if t == nil {
			continue
		}

		type edge struct {
			to   string
			step pathStep
		}
		var edges []edge
		for _, f := range t.Fields {
			edges = append(edges, edge{to: f.Type.Name(), step: pathStep{typeName: t.Name, fieldName: f.Name, hasArgs: len(f.Args) > 0}})
		}
		if t.Kind == schema.Union || t.Kind == schema.Interface {
			for _, p := range t.PossibleTypes {
				edges = append(edges, edge{to: p, step: pathStep{typeName: t.Name, fragment: p}})
			}
		}

		for _, e := range edges {
			steps := make([]pathStep, len(current.steps)+1)
			copy(steps, current.steps)
			steps[len(current.steps)] = e.step

			if e.to == targetType {
				results = append(results, foundPath{steps: steps, text: formatPath(steps, targetType)})
			}

			if current.visited[e.to] || len(steps) >= maxDepth {
				continue
			}
			if next := types[e.to]; next != nil && next.Kind.IsStructured() {
				visited := maps.Clone(current.visited)
				visited[e.to] = true
				queue = append(queue, searchState{at: e.to, steps: steps, visited: visited})
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].text < results[j].text
	})
	return results
}

func NewPathsCmd() *cobra.Command {
	opts := &pathsOptions{}

	cmd := &cobra.Command{
		Use:   "paths <type>",
		Short: "Lists paths from a root type to a given type.",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			names, err := completeTypeNames(toComplete, nil)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		Long: `Lists possible paths from a root type to reach a given type.

By default, searches from the query root. Use --from to start from a different type.
Use --shortest to only show the shortest path(s).

Unions and interfaces are crossed with inline fragments, shown as
"... on Type".

With --document, prints the single path the probe would use for the type and
the document it would send, with FUZZ where candidate names go. Input objects
are reached through arguments and their documents put FUZZ inside the
argument literal.`,
		Example: `  # All ways to reach Comment
  gqlblind paths Comment

  # Shortest paths through Post
  gqlblind paths Comment --through Post --shortest

  # The document used to probe a type
  gqlblind paths PostFilter --document`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaths(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 5, "Maximum depth to search for paths")
	cmd.Flags().StringVar(&opts.from, "from", "", "Type to start searching from (default: the query root)")
	cmd.Flags().BoolVar(&opts.shortest, "shortest", false, "Only show the shortest path(s)")
	cmd.Flags().StringVar(&opts.through, "through", "", "Only show paths that pass through the given type")
	cmd.Flags().BoolVar(&opts.document, "document", false, "Print the probe path and document for the type")

	return cmd
}

func runPaths(cmd *cobra.Command, targetType string, opts *pathsOptions) error {
	s, err := loadCliForSchema()
	if err != nil {
		return err
	}

	if _, err := lookupType(s, targetType, "type", nil); err != nil {
		return err
	}

	var paths []PathInfo
	if opts.document {
		p, ok := s.PathFromRoot(targetType)
		if !ok {
			return fmt.Errorf("type '%s' cannot be reached from a root type", targetType)
		}
		paths = []PathInfo{{Path: p.String(), Document: p.Document(oracle.Placeholder)}}
	} else {
		fromType := opts.from
		if fromType == "" {
			fromType = s.QueryType()
		}
		if _, err := lookupType(s, fromType, "type", nil); err != nil {
			return err
		}
		if opts.through != "" {
			if _, err := lookupType(s, opts.through, "type", nil); err != nil {
				return err
			}
		}

		found := findPaths(s, fromType, targetType, opts.maxDepth)
		if opts.through != "" {
			var filtered []foundPath
			for _, p := range found {
				if p.passesThrough(opts.through) {
					filtered = append(filtered, p)
				}
			}
			found = filtered
		}
		if opts.shortest && len(found) > 0 {
			minDepth := len(found[0].steps)
			for _, p := range found {
				minDepth = min(minDepth, len(p.steps))
			}
			var shortest []foundPath
			for _, p := range found {
				if len(p.steps) == minDepth {
					shortest = append(shortest, p)
				}
			}
			found = shortest
		}
		for _, p := range found {
			paths = append(paths, PathInfo{Path: p.text})
		}
	}

	if len(paths) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No paths found that match the filters.")
	}

	headers := []string{"path"}
	if opts.document {
		headers = append(headers, "document")
	}
	renderer := render.Renderer[PathInfo]{
		Data:    paths,
		Text:    formatPathText,
		Headers: headers,
		Row:     pathRow,
	}
	if err := renderer.Write(cmd.OutOrStdout(), outputFormat); err != nil {
		return fmt.Errorf("error rendering output: %w", err)
	}
	return nil
}
