/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/samwightt/gqlblind/pkg/render"
	"github.com/samwightt/gqlblind/pkg/schema"
	"github.com/spf13/cobra"
)

func isEnum(t *schema.TypeDef) bool {
	return t.Kind == schema.Enum
}

func formatValueName(v ValueInfo) string {
	if v.EnumName != "" {
		return v.EnumName + "." + v.Name
	}
	return v.Name
}

func NewValuesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "values [enum]",
		Short: "Lists recovered values of an enum type.",
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			names, err := completeTypeNames(toComplete, isEnum)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		Args: cobra.MaximumNArgs(1),
		Long: `Lists recovered values of an enum type.

If an enum is specified, only values for that enum are shown.
If no enum is specified, all enum values for all enums are shown.

Enum values come from the server's suggestions when an invalid value is
sent, and from the wordlist when the probe ran with --enum-values. An enum
can therefore be known with no values at all.`,
		RunE: runValues,
	}

	return cmd
}

func runValues(cmd *cobra.Command, args []string) error {
	s, err := loadCliForSchema()
	if err != nil {
		return err
	}

	var values []ValueInfo
	if len(args) == 0 {
		for _, t := range s.Types() {
			if !isEnum(t) {
				continue
			}
			for _, v := range t.EnumValues {
				values = append(values, ValueInfo{EnumName: t.Name, Name: v})
			}
		}
	} else {
		t, err := lookupType(s, args[0], "enum", isEnum)
		if err != nil {
			return err
		}
		if !isEnum(t) {
			return fmt.Errorf("'%s' is not an enum (it's a %s)", t.Name, kindToString(t.Kind))
		}
		for _, v := range t.EnumValues {
			values = append(values, ValueInfo{Name: v})
		}
	}

	if len(values) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No values found that match the filters.")
	}

	renderer := render.Renderer[ValueInfo]{
		Data:    values,
		Text:    formatValueName,
		Headers: []string{"value"},
		Row: func(v ValueInfo) []string {
			return []string{formatValueName(v)}
		},
	}
	if err := renderer.Write(cmd.OutOrStdout(), outputFormat); err != nil {
		return fmt.Errorf("error rendering output: %w", err)
	}
	return nil
}
