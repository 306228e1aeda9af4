package oracle

import (
	"regexp"
	"strings"

	"github.com/samwightt/gqlblind/pkg/schema"
)

// Verdict is what an error message says about the probed document.
type Verdict string

const (
	// InvalidName: the named field, argument or input field does not exist.
	InvalidName Verdict = "invalid-name"
	// NeedsSubselection: the named field exists and returns a structured type.
	NeedsSubselection Verdict = "needs-subselection"
	// NoSubselection: the named field exists and returns a leaf type.
	NoSubselection Verdict = "no-subselection"
	// RequiredArgument: the named argument exists and was not provided.
	RequiredArgument Verdict = "required-argument"
	// RequiredInputField: the named input field exists and was not provided.
	RequiredInputField Verdict = "required-input-field"
	// TypeMismatch: a literal does not fit the expected input type.
	TypeMismatch Verdict = "type-mismatch"
	// EnumMismatch: a non-enum literal was given for an enum type.
	EnumMismatch Verdict = "enum-mismatch"
	// InvalidEnumValue: an enum literal is not a value of the enum.
	InvalidEnumValue Verdict = "invalid-enum-value"
	// AbstractType: the named field is not on the abstract type, but on some
	// of its possible types.
	AbstractType Verdict = "abstract-type"
	// Aborted: the server refused to judge the document as a whole, for
	// example after too many errors. The names in it must be probed one by one.
	Aborted Verdict = "aborted"
)

// Namespace is the kind of name a finding is about.
type Namespace string

const (
	NamespaceField      Namespace = "field"
	NamespaceArgument   Namespace = "argument"
	NamespaceInputField Namespace = "input-field"
)

// Finding is one classified error message.
type Finding struct {
	Rule      string
	Verdict   Verdict
	Namespace Namespace
	// Name is the field, argument, input field or enum value the message is
	// about.
	Name string
	// Owner is the type declaring Name, or for arguments the field.
	Owner string
	// OwnerType is the type declaring the field, for arguments only.
	OwnerType string
	// TypeRef is the type named by the message in SDL notation, if any.
	TypeRef string
	// Kind is implied by the message for TypeRef's named type, if any.
	Kind schema.Kind
	// Value is the literal the message complains about.
	Value         string
	Suggestions   []string
	PossibleTypes []string
	Message       string
}

// Type parses TypeRef.
func (f Finding) Type() (schema.TypeRef, bool) {
	if f.TypeRef == "" {
		return schema.TypeRef{}, false
	}
	ref, err := schema.ParseTypeRef(f.TypeRef)
	if err != nil {
		return schema.TypeRef{}, false
	}
	return ref, true
}

// Rule turns messages matching Pattern into a Finding. Build receives the
// pattern's named groups.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Build   func(groups map[string]string) Finding
}

// Classifier matches error messages against an ordered set of rules. The
// first matching rule wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier using rules in order.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// With returns a classifier that tries rules before the receiver's own.
func (c *Classifier) With(rules ...Rule) *Classifier {
	combined := make([]Rule, 0, len(rules)+len(c.rules))
	combined = append(combined, rules...)
	combined = append(combined, c.rules...)
	return &Classifier{rules: combined}
}

// Rules returns the rule names in evaluation order.
func (c *Classifier) Rules() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

// Classify returns the finding for msg, or false if no rule matches.
func (c *Classifier) Classify(msg string) (Finding, bool) {
	msg = strings.TrimSpace(msg)
	for _, r := range c.rules {
		m := r.Pattern.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		groups := map[string]string{}
		for i, name := range r.Pattern.SubexpNames() {
			if name != "" && m[i] != "" {
				groups[name] = m[i]
			}
		}
		f := r.Build(groups)
		f.Rule = r.Name
		f.Message = msg
		return f, true
	}
	return Finding{}, false
}

// ClassifyAll classifies every message and returns the findings and the
// messages no rule matched.
func (c *Classifier) ClassifyAll(msgs []string) (findings []Finding, unclassified []string) {
	for _, msg := range msgs {
		if f, ok := c.Classify(msg); ok {
			findings = append(findings, f)
		} else {
			unclassified = append(unclassified, msg)
		}
	}
	return findings, unclassified
}

// Pattern fragments. Servers quote names with double quotes, single quotes or
// backticks, and some older ones not at all.
const (
	q        = "[\"'`]"
	qOpt     = "[\"'`]?"
	ident    = `[_A-Za-z][_0-9A-Za-z]*`
	typeExpr = `[\[\]!_A-Za-z][\[\]!_0-9A-Za-z]*`
)

var quotedNameRegex = regexp.MustCompile(q + `(` + ident + `)` + q)

// quotedNames extracts every quoted name from a suggestion tail such as
// ` Did you mean "a", "b", or "c"?`.
func quotedNames(s string) []string {
	var out []string
	for _, m := range quotedNameRegex.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

func rx(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

// DefaultClassifier knows the phrasings of graphql-js (v14 to v16),
// gqlparser, graphql-java and Hot Chocolate.
func DefaultClassifier() *Classifier {
	return NewClassifier(defaultRules()...)
}

func defaultRules() []Rule {
	return []Rule{
		{
			Name:    "too-many-errors",
			Pattern: rx(`(?i)too many (?:validation )?errors`),
			Build: func(map[string]string) Finding {
				return Finding{Verdict: Aborted}
			},
		},
		{
			Name:    "single-root-field",
			Pattern: rx(`(?i)must select only one top level field`),
			Build: func(map[string]string) Finding {
				return Finding{Verdict: Aborted}
			},
		},
		{
			Name:    "field-on-abstract-type",
			Pattern: rx(`^Cannot query field ` + q + `(?P<name>` + ident + `)` + q + ` on type ` + q + `(?P<owner>` + ident + `)` + q + `\. Did you mean to use an inline fragment on (?P<rest>.*)$`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:       AbstractType,
					Namespace:     NamespaceField,
					Name:          g["name"],
					Owner:         g["owner"],
					PossibleTypes: quotedNames(g["rest"]),
				}
			},
		},
		{
			Name:    "unknown-field",
			Pattern: rx(`^Cannot query field ` + q + `(?P<name>` + ident + `)` + q + ` on type ` + q + `(?P<owner>` + ident + `)` + q + `\.?(?P<rest>.*)$`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:     InvalidName,
					Namespace:   NamespaceField,
					Name:        g["name"],
					Owner:       g["owner"],
					Suggestions: quotedNames(g["rest"]),
				}
			},
		},
		{
			Name:    "unknown-field-graphql-java",
			Pattern: rx(`Field ` + q + `(?P<name>` + ident + `)` + q + ` in type ` + q + `(?P<owner>` + ident + `)` + q + ` is undefined`),
			Build: func(g map[string]string) Finding {
				return Finding{Verdict: InvalidName, Namespace: NamespaceField, Name: g["name"], Owner: g["owner"]}
			},
		},
		{
			Name:    "unknown-field-hotchocolate",
			Pattern: rx(`^The field ` + q + `(?P<name>` + ident + `)` + q + ` does not exist on the type ` + q + `(?P<owner>` + ident + `)` + q),
			Build: func(g map[string]string) Finding {
				return Finding{Verdict: InvalidName, Namespace: NamespaceField, Name: g["name"], Owner: g["owner"]}
			},
		},
		{
			Name:    "needs-subselection",
			Pattern: rx(`^Field ` + q + `(?P<name>` + ident + `)` + q + ` of type ` + q + `(?P<type>` + typeExpr + `)` + q + ` must have a (?:sub)?selection of subfields`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:   NeedsSubselection,
					Namespace: NamespaceField,
					Name:      g["name"],
					TypeRef:   g["type"],
					Kind:      schema.Object,
				}
			},
		},
		{
			Name:    "no-subselection",
			Pattern: rx(`^Field ` + q + `(?P<name>` + ident + `)` + q + ` must not have a selection since type ` + q + `(?P<type>` + typeExpr + `)` + q + ` has no subfields`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:   NoSubselection,
					Namespace: NamespaceField,
					Name:      g["name"],
					TypeRef:   g["type"],
				}
			},
		},
		{
			Name: "unknown-argument",
			Pattern: rx(`^Unknown argument ` + q + `(?P<name>` + ident + `)` + q + ` on field ` + q +
				`(?:(?P<otype>` + ident + `)\.)?(?P<owner>` + ident + `)` + q +
				`(?: of type ` + q + `(?P<otype2>` + ident + `)` + q + `)?\.?(?P<rest>.*)$`),
			Build: func(g map[string]string) Finding {
				ownerType := g["otype"]
				if ownerType == "" {
					ownerType = g["otype2"]
				}
				return Finding{
					Verdict:     InvalidName,
					Namespace:   NamespaceArgument,
					Name:        g["name"],
					Owner:       g["owner"],
					OwnerType:   ownerType,
					Suggestions: quotedNames(g["rest"]),
				}
			},
		},
		{
			Name: "required-argument",
			Pattern: rx(`^Field ` + q + `(?:(?P<otype>` + ident + `)\.)?(?P<owner>` + ident + `)` + q +
				` argument ` + q + `(?P<name>` + ident + `)` + q + ` of type ` + q + `(?P<type>` + typeExpr + `)` + q + ` is required`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:   RequiredArgument,
					Namespace: NamespaceArgument,
					Name:      g["name"],
					Owner:     g["owner"],
					OwnerType: g["otype"],
					TypeRef:   g["type"],
				}
			},
		},
		{
			Name: "required-input-field",
			Pattern: rx(`^Field ` + qOpt + `(?P<owner>` + ident + `)\.(?P<name>` + ident + `)` + qOpt +
				` of required type ` + qOpt + `(?P<type>` + typeExpr + `)` + qOpt + ` was not provided`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:   RequiredInputField,
					Namespace: NamespaceInputField,
					Name:      g["name"],
					Owner:     g["owner"],
					TypeRef:   g["type"],
				}
			},
		},
		{
			Name:    "unknown-input-field",
			Pattern: rx(`^Field ` + q + `(?P<name>` + ident + `)` + q + ` is not defined by type ` + q + `(?P<owner>` + ident + `)` + q + `\.?(?P<rest>.*)$`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:     InvalidName,
					Namespace:   NamespaceInputField,
					Name:        g["name"],
					Owner:       g["owner"],
					Suggestions: quotedNames(g["rest"]),
				}
			},
		},
		{
			Name:    "enum-non-enum-value",
			Pattern: rx(`^Enum ` + q + `(?P<type>` + typeExpr + `)` + q + ` cannot represent non-enum value: (?P<value>.*?)\.?(?: Did you mean the enum value(?P<rest>.*))?$`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:     EnumMismatch,
					TypeRef:     g["type"],
					Kind:        schema.Enum,
					Value:       g["value"],
					Suggestions: quotedNames(g["rest"]),
				}
			},
		},
		{
			Name:    "enum-unknown-value",
			Pattern: rx(`^Value ` + q + `(?P<name>` + ident + `)` + q + ` does not exist in ` + q + `(?P<type>` + typeExpr + `)` + q + ` enum\.?(?P<rest>.*)$`),
			Build: func(g map[string]string) Finding {
				return Finding{
					Verdict:     InvalidEnumValue,
					Name:        g["name"],
					Value:       g["name"],
					TypeRef:     g["type"],
					Kind:        schema.Enum,
					Suggestions: quotedNames(g["rest"]),
				}
			},
		},
		{
			Name:    "expected-type",
			Pattern: rx(`^Expected value of type ` + q + `(?P<type>` + typeExpr + `)` + q + `, found (?P<value>.*?)(?:;.*|\.)?$`),
			Build: func(g map[string]string) Finding {
				return Finding{Verdict: TypeMismatch, TypeRef: g["type"], Value: g["value"]}
			},
		},
		{
			Name:    "expected-type-legacy",
			Pattern: rx(`Expected type ` + qOpt + `(?P<type>` + typeExpr + `)` + qOpt + `, found (?P<value>.*?)(?:;.*|\.)?$`),
			Build: func(g map[string]string) Finding {
				return Finding{Verdict: TypeMismatch, TypeRef: g["type"], Value: g["value"]}
			},
		},
		{
			Name:    "builtin-scalar-mismatch",
			Pattern: rx(`^(?P<type>Int|Float|String|Boolean|ID) cannot represent (?:a )?non.*?value: (?P<value>.*)$`),
			Build: func(g map[string]string) Finding {
				return Finding{Verdict: TypeMismatch, TypeRef: g["type"], Kind: schema.Scalar, Value: g["value"]}
			},
		},
	}
}
