/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vektah/gqlparser/v2/formatter"
)

func NewSDLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sdl",
		Short: "Prints the recovered schema as SDL",
		Long: `Prints the recovered schema in GraphQL schema definition language.

Types whose kind could not be determined are printed as scalars with the
description "gqlblind: kind unresolved". The output format flag is ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadCliForSchema()
			if err != nil {
				return err
			}
			formatter.NewFormatter(cmd.OutOrStdout()).FormatSchema(s.ToAST())
			return nil
		},
	}
}
