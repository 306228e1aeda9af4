/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samwightt/gqlblind/pkg/render"
	"github.com/samwightt/gqlblind/pkg/schema"
	"github.com/spf13/cobra"
)

type fieldsOptions struct {
	hasArg    []string
	returns   string
	required  bool
	nullable  bool
	name      string
	nameRegex string
}

// fieldFilter is a compiled fieldsOptions.
type fieldFilter struct {
	opts      *fieldsOptions
	nameRegex *regexp.Regexp
}

func (f fieldFilter) match(name string, ref schema.TypeRef, args []*schema.Argument) bool {
	for _, want := range f.opts.hasArg {
		found := false
		for _, a := range args {
			if a.Name == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.opts.returns != "" && ref.Name() != f.opts.returns {
		return false
	}
	if f.opts.required && !ref.IsNonNull() {
		return false
	}
	if f.opts.nullable && ref.IsNonNull() {
		return false
	}
	if f.opts.name != "" {
		if matched, _ := filepath.Match(f.opts.name, name); !matched {
			return false
		}
	}
	if f.nameRegex != nil && !f.nameRegex.MatchString(name) {
		return false
	}
	return true
}

// collect returns the fields and input fields of t that pass the filter.
func (f fieldFilter) collect(t *schema.TypeDef, qualify bool) []FieldInfo {
	var out []FieldInfo
	owner := ""
	if qualify {
		owner = t.Name
	}
	for _, field := range t.Fields {
		if !f.match(field.Name, field.Type, field.Args) {
			continue
		}
		info := FieldInfo{TypeName: owner, Name: field.Name, Type: field.Type.String()}
		for _, a := range field.Args {
			info.Arguments = append(info.Arguments, ArgumentInfo{Name: a.Name, Type: a.Type.String()})
		}
		out = append(out, info)
	}
	for _, field := range t.InputFields {
		if !f.match(field.Name, field.Type, nil) {
			continue
		}
		out = append(out, FieldInfo{TypeName: owner, Name: field.Name, Type: field.Type.String(), Input: true})
	}
	return out
}

func formatFieldName(field FieldInfo, format render.Format) string {
	name := field.Name
	if field.TypeName != "" {
		name = field.TypeName + "." + field.Name
	}

	if len(field.Arguments) == 0 {
		return name
	}

	var args []string
	for _, arg := range field.Arguments {
		args = append(args, fmt.Sprintf("%s: %s", arg.Name, arg.Type))
	}

	if format == render.FormatPretty {
		return fmt.Sprintf("%s(\n\t\t%s\n\t)", name, strings.Join(args, ",\n\t\t"))
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

func formatFieldText(field FieldInfo) string {
	return fmt.Sprintf("%s: %s", formatFieldName(field, render.FormatText), field.Type)
}

func fieldRow(field FieldInfo) []string {
	kind := "field"
	if field.Input {
		kind = "input field"
	}
	return []string{formatFieldName(field, render.FormatPretty), field.Type, kind}
}

func NewFieldsCmd() *cobra.Command {
	opts := &fieldsOptions{}

	cmd := &cobra.Command{
		Use:   "fields [type]",
		Short: "Lists recovered fields on a type or across all types",
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			names, err := completeTypeNames(toComplete, func(t *schema.TypeDef) bool {
				return len(t.Fields) > 0 || len(t.InputFields) > 0
			})
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		Args: cobra.MaximumNArgs(1),
		Long: `Lists recovered fields on a type or across all types with optional filtering.

If a type is specified, shows fields for that type only. Input objects list
their input fields. If no type is specified, shows all fields prefixed with
their type (User.id, Post.title, etc).

Arguments are listed with the types the probe determined for them. Fields
whose type could not be determined are not recorded at all.

Output formats:
  text    "friends(first: Int): [User!]!", "id: ID!", etc. (default when piping)
  json    [{"name": "id", "type": "ID!"}, ...]
  pretty  Formatted table with columns (default in terminal)

Multiple filters can be combined and are applied with AND logic.`,
		Example: `  # See all fields on a type
  gqlblind fields User

  # Fields that take pagination arguments and return a specific type
  gqlblind fields --has-arg first --returns User

  # Find fields ending in "Id"
  gqlblind fields --name "*Id"

  # Find fields matching a regex pattern
  gqlblind fields --name-regex "^(get|fetch)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.hasArg, "has-arg", nil, "Filter to fields that have the given argument (can be specified multiple times)")
	cmd.Flags().StringVar(&opts.returns, "returns", "", "Filter to fields that return the given type")
	cmd.Flags().BoolVar(&opts.required, "required", false, "Filter to only show required (non-null) fields")
	cmd.Flags().BoolVar(&opts.nullable, "nullable", false, "Filter to only show nullable fields")
	cmd.Flags().StringVar(&opts.name, "name", "", "Filter fields by name using a glob pattern (e.g., *Id, get*)")
	cmd.Flags().StringVar(&opts.nameRegex, "name-regex", "", "Filter fields by name using a regex pattern")

	return cmd
}

func runFields(cmd *cobra.Command, args []string, opts *fieldsOptions) error {
	if opts.required && opts.nullable {
		return fmt.Errorf("--required and --nullable cannot be used together")
	}

	filter := fieldFilter{opts: opts}
	if opts.nameRegex != "" {
		var err error
		filter.nameRegex, err = regexp.Compile(opts.nameRegex)
		if err != nil {
			return fmt.Errorf("invalid regex pattern for --name-regex: %w", err)
		}
	}

	s, err := loadCliForSchema()
	if err != nil {
		return err
	}

	var fields []FieldInfo
	if len(args) == 0 {
		for _, t := range s.Types() {
			fields = append(fields, filter.collect(t, true)...)
		}
	} else {
		t, err := lookupType(s, args[0], "type", nil)
		if err != nil {
			return err
		}
		fields = filter.collect(t, false)
	}

	if len(fields) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No fields found that match the filters.")
	}

	renderer := render.Renderer[FieldInfo]{
		Data:    fields,
		Text:    formatFieldText,
		Headers: []string{"field", "type", "kind"},
		Row:     fieldRow,
	}
	if err := renderer.Write(cmd.OutOrStdout(), outputFormat); err != nil {
		return fmt.Errorf("error rendering output: %w", err)
	}
	return nil
}
