/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"os"

	"github.com/samwightt/gqlblind/pkg/render"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	schemaFilePath string
	outputFormat   render.Format
)

func formatFlag() string {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return string(render.FormatPretty)
	}
	return string(render.FormatText)
}

// NewRootCmd creates and returns the root command with all subcommands attached.
// This function creates a fresh command tree, ensuring no state leaks between invocations.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gqlblind",
		Short: "Recover a GraphQL schema from an endpoint with introspection disabled",
		Long: `gqlblind rebuilds the schema of a GraphQL endpoint that has introspection
turned off. It sends documents with guessed names and reads the validation
errors the server returns: which names exist, what they return, which
arguments they take and of what type.

"gqlblind probe <url>" runs the recovery and writes an introspection result
that other GraphQL tools can load. The remaining commands inspect a recovered
schema: which types are known, which are still unexplored, which fields and
arguments were found, and how each type can be reached from a root.

Output can be formatted as pretty tables (default in terminals), plain text
(default when piping), or JSON for integration with other tools.`,
		Example: `  # Recover a schema, saving progress after every iteration
  gqlblind probe https://api.example.com/graphql -o schema.json

  # Resume from a previous run with a custom wordlist
  gqlblind probe https://api.example.com/graphql -i schema.json -o schema.json -w words.txt

  # List the types that were found but not probed yet
  gqlblind types -s schema.json --unexplored

  # Show the document that reaches a type
  gqlblind paths Comment -s schema.json --document

  # Print the recovered schema as SDL
  gqlblind sdl -s schema.json`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&schemaFilePath, "schema", "s", "schema.json", "Recovered schema: introspection JSON, or SDL when the file ends in .graphql")

	var formatStr string
	cmd.PersistentFlags().StringVarP(&formatStr, "format", "f", formatFlag(), "Output format: json, text, pretty (default: pretty if interactive, text otherwise)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		outputFormat, err = render.ParseFormat(formatStr)
		return err
	}

	cmd.AddCommand(NewProbeCmd())
	cmd.AddCommand(NewTypesCmd())
	cmd.AddCommand(NewFieldsCmd())
	cmd.AddCommand(NewValuesCmd())
	cmd.AddCommand(NewPathsCmd())
	cmd.AddCommand(NewSDLCmd())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// ExecuteWithArgs runs the CLI with the given arguments and returns stdout, stderr, and any error.
// This is useful for testing.
func ExecuteWithArgs(args []string) (stdout string, stderr string, err error) {
	return ExecuteWithArgsAndStdin(args, nil)
}

// ExecuteWithArgsAndStdin runs the CLI with the given arguments and stdin, returns stdout, stderr, and any error.
// Probe documents can be piped in with "-d -".
func ExecuteWithArgsAndStdin(args []string, stdin *bytes.Buffer) (stdout string, stderr string, err error) {
	cmd := NewRootCmd()

	stdoutBuf := new(bytes.Buffer)
	stderrBuf := new(bytes.Buffer)

	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf)
	cmd.SetArgs(args)
	if stdin != nil {
		cmd.SetIn(stdin)
	}

	err = cmd.Execute()

	return stdoutBuf.String(), stderrBuf.String(), err
}
