/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samwightt/gqlblind/pkg/render"
	"github.com/samwightt/gqlblind/pkg/schema"
	"github.com/spf13/cobra"
)

type typesOptions struct {
	kind       []string
	hasField   []string
	unexplored bool
}

var validKinds = map[string]schema.Kind{
	"scalar":    schema.Scalar,
	"type":      schema.Object,
	"object":    schema.Object,
	"interface": schema.Interface,
	"union":     schema.Union,
	"enum":      schema.Enum,
	"input":     schema.InputObject,
	"unknown":   schema.Unknown,
}

func formatTypeText(t TypeInfo) string {
	if !t.Explored {
		return fmt.Sprintf("%s %s # unexplored", t.Kind, t.Name)
	}
	return fmt.Sprintf("%s %s", t.Kind, t.Name)
}

func typeRow(t TypeInfo) []string {
	status := "explored"
	if !t.Explored {
		status = "unexplored"
	}
	return []string{t.Kind, t.Name, strconv.Itoa(t.Members), status}
}

func parseKinds(names []string) (map[schema.Kind]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	kinds := map[schema.Kind]bool{}
	for _, n := range names {
		k, ok := validKinds[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("invalid kind '%s' (valid: scalar, type, interface, union, enum, input, unknown)", n)
		}
		kinds[k] = true
	}
	return kinds, nil
}

func hasFields(t *schema.TypeDef, names []string) bool {
	for _, n := range names {
		if t.Field(n) == nil && t.InputField(n) == nil {
			return false
		}
	}
	return true
}

func NewTypesCmd() *cobra.Command {
	opts := &typesOptions{}

	cmd := &cobra.Command{
		Use:   "types",
		Short: "Lists all types in the recovered schema",
		Long: `Lists all types in the recovered schema with optional filtering.

Shows the type's kind, name, number of members found (fields, input fields
or enum values) and whether it was explored. A type is
unexplored when it was seen as the type of some member but has not been
probed yet. Types whose kind could not be determined are listed as "unknown".

Output formats:
  text    "type User", "input Filter # unexplored", etc. (default when piping)
  json    [{"name": "User", "kind": "type", "members": 3, "explored": true}, ...]
  pretty  Formatted table with columns (default in terminal)

Multiple filters can be combined and are applied with AND logic.`,
		Example: `  # Types still waiting to be probed
  gqlblind types --unexplored

  # Input objects and enums only
  gqlblind types --kind input --kind enum

  # Types that have both an id and a name field
  gqlblind types --has-field id --has-field name`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTypes(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.kind, "kind", nil, "Filter to types of the given kind: scalar, type, interface, union, enum, input, unknown (OR logic when repeated)")
	cmd.Flags().StringArrayVar(&opts.hasField, "has-field", nil, "Filter to types that have the given field or input field (AND logic when repeated)")
	cmd.Flags().BoolVar(&opts.unexplored, "unexplored", false, "Only show types that have not been probed yet")

	return cmd
}

func runTypes(cmd *cobra.Command, opts *typesOptions) error {
	kinds, err := parseKinds(opts.kind)
	if err != nil {
		return err
	}

	s, err := loadCliForSchema()
	if err != nil {
		return err
	}

	var types []TypeInfo
	for _, t := range s.Types() {
		kind := t.Kind
		if kind == "" {
			kind = schema.Unknown
		}
		if kinds != nil && !kinds[kind] {
			continue
		}
		if !hasFields(t, opts.hasField) {
			continue
		}
		if opts.unexplored && t.Explored() {
			continue
		}
		types = append(types, TypeInfo{
			Name:     t.Name,
			Kind:     kindToString(kind),
			Members:  t.Members(),
			Explored: t.Explored(),
		})
	}

	if len(types) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No types found that match the filters.")
	}

	renderer := render.Renderer[TypeInfo]{
		Data:    types,
		Text:    formatTypeText,
		Headers: []string{"kind", "name", "members", "status"},
		Row:     typeRow,
	}
	return renderer.Write(cmd.OutOrStdout(), outputFormat)
}
