// Package wordlist loads the candidate names tried at each probe position.
package wordlist

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

//go:embed default.txt
var defaultList string

// nameRegex is the GraphQL Name grammar: https://spec.graphql.org/October2021/#Name
var nameRegex = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// IsName reports whether s is a valid GraphQL name.
func IsName(s string) bool {
	return nameRegex.MatchString(s)
}

// Read returns the non-empty, trimmed lines of r, de-duplicated in first-seen
// order.
func Read(r io.Reader) ([]string, error) {
	seen := map[string]bool{}
	var words []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

// Load reads a wordlist file with Read.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wordlist: %w", err)
	}
	defer f.Close()

	words, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read wordlist %s: %w", path, err)
	}
	return words, nil
}

// Default returns the embedded wordlist.
func Default() []string {
	words, _ := Read(strings.NewReader(defaultList))
	return words
}

// FilterNames drops every word that is not a valid GraphQL name and returns
// the kept words and how many were removed.
func FilterNames(words []string) ([]string, int) {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if IsName(w) {
			kept = append(kept, w)
		}
	}
	return kept, len(words) - len(kept)
}
