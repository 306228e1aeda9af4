package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samwightt/gqlblind/pkg/diagnostic"
	"github.com/samwightt/gqlblind/pkg/oracle"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// ErrInvalidDocument is returned when the seed document cannot be probed.
// The reasons have already been printed as diagnostics.
var ErrInvalidDocument = errors.New("invalid probe document")

// readDocument resolves the --document value: "-" reads stdin, "@path" reads
// a file and anything else is the document itself. name labels the source in
// diagnostics.
func readDocument(value string, stdin io.Reader) (name, doc string, err error) {
	switch {
	case value == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read document from stdin: %w", err)
		}
		return "stdin", string(data), nil
	case strings.HasPrefix(value, "@"):
		path := strings.TrimPrefix(value, "@")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("failed to read document file: %w", err)
		}
		return path, string(data), nil
	default:
		return "document", value, nil
	}
}

// checkDocument reports syntax errors and a placeholder count other than
// one. The document is not validated against a schema; the server does that.
func checkDocument(doc string) []diagnostic.Diagnostic {
	var diags []diagnostic.Diagnostic

	if _, err := parser.ParseQuery(&ast.Source{Input: doc}); err != nil {
		d := diagnostic.Diagnostic{Message: err.Error()}
		var gqlErr *gqlerror.Error
		if errors.As(err, &gqlErr) {
			d.Message = gqlErr.Message
			if len(gqlErr.Locations) > 0 {
				d.Line, d.Column = gqlErr.Locations[0].Line, gqlErr.Locations[0].Column
			}
		}
		d.Help = shellEscapeHelp(doc, d.Line, d.Column)
		diags = append(diags, d)
	}

	positions := placeholderPositions(doc)
	switch {
	case len(positions) == 0:
		diags = append(diags, diagnostic.Diagnostic{
			Message: "document has no " + oracle.Placeholder + " placeholder",
			Help:    "put " + oracle.Placeholder + " where names should be guessed, e.g. `query { user { " + oracle.Placeholder + " } }`",
		})
	case len(positions) > 1:
		for _, p := range positions[1:] {
			diags = append(diags, diagnostic.Diagnostic{
				Line:    p.Line,
				Column:  p.Column,
				Length:  len(oracle.Placeholder),
				Message: "placeholder appears more than once",
				Help:    "keep exactly one " + oracle.Placeholder,
			})
		}
	}
	return diags
}

// placeholderPositions returns the 1-based line and column of every
// placeholder in doc.
func placeholderPositions(doc string) []ast.Position {
	var out []ast.Position
	for i, line := range strings.Split(doc, "\n") {
		offset := 0
		for {
			idx := strings.Index(line[offset:], oracle.Placeholder)
			if idx < 0 {
				break
			}
			out = append(out, ast.Position{Line: i + 1, Column: offset + idx + 1})
			offset += idx + len(oracle.Placeholder)
		}
	}
	return out
}

// shellEscapeHelp explains a syntax error caused by an interactive shell
// turning `!` into `\!` inside double quotes.
func shellEscapeHelp(doc string, line, column int) string {
	if !strings.Contains(doc, `\!`) || line < 1 {
		return ""
	}
	lines := strings.Split(doc, "\n")
	if line > len(lines) {
		return ""
	}
	src := lines[line-1]
	col := column - 1
	if col >= 0 && col < len(src)-1 && src[col] == '\\' && src[col+1] == '!' {
		return "it looks like the shell escaped `!` as `\\!`. Quote the document with single quotes or pass it with -d - and a heredoc"
	}
	return ""
}
