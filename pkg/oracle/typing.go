package oracle

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samwightt/gqlblind/pkg/client"
	"github.com/samwightt/gqlblind/pkg/schema"
)

// fieldType is what the kind-inference requests tell about one field.
type fieldType struct {
	ref        schema.TypeRef
	kind       schema.Kind
	structured bool
	// required holds the required arguments the server complained about.
	required map[string]schema.TypeRef
	// possible holds possible types of ref's named type.
	possible []string
}

// inferField sends the field bare and with a selection of typeProbe. A
// structured field is rejected bare with its full type; a leaf field is
// rejected with a selection. ok is false when neither request names the type.
func (o *Oracle) inferField(ctx context.Context, target Target, name string) (fieldType, bool, error) {
	ft := fieldType{required: map[string]schema.TypeRef{}}

	var owner string
	for _, content := range []string{name, name + " { " + typeProbe + " }"} {
		resp, err := o.send(ctx, substitute(target.Document, false, content))
		if err != nil {
			return fieldType{}, false, err
		}
		if resp == nil {
			continue
		}
		findings, _ := o.classifier.ClassifyAll(resp.Messages())
		for _, f := range findings {
			switch {
			case f.Verdict == NeedsSubselection && f.Name == name:
				if ref, ok := f.Type(); ok {
					ft.ref = ref
					ft.kind = schema.Object
					ft.structured = true
				}
			case f.Verdict == NoSubselection && f.Name == name:
				if ref, ok := f.Type(); ok && ft.ref.IsZero() {
					ft.ref = ref
					if schema.IsBuiltinScalar(ref.Name()) {
						ft.kind = schema.Scalar
					}
				}
			case (f.Verdict == InvalidName || f.Verdict == AbstractType) &&
				f.Namespace == NamespaceField && f.Name == typeProbe:
				owner = f.Owner
				ft.possible = appendUnique(ft.possible, f.PossibleTypes...)
			case f.Verdict == RequiredArgument && f.Owner == name &&
				(f.OwnerType == "" || f.OwnerType == target.TypeName):
				if ref, ok := f.Type(); ok {
					ft.required[f.Name] = ref
				}
			}
		}
	}

	if ft.ref.IsZero() && owner != "" {
		ft.ref = schema.NamedType(owner)
		ft.kind = schema.Object
		ft.structured = true
	}
	if ft.ref.IsZero() {
		return fieldType{}, false, nil
	}
	return ft, true, nil
}

// errInconclusive unwinds a sentinel pass when one request fails.
var errInconclusive = errors.New("inconclusive")

// sentinel is a literal sent to learn the type of an argument or input field
// from how the server rejects it.
type sentinel int

const (
	sentinelNull sentinel = iota
	sentinelInt
	sentinelFloat
	sentinelString
	sentinelBool
	sentinelObject
	numSentinels
)

var sentinelLiterals = [numSentinels]string{
	sentinelNull:   "null",
	sentinelInt:    "7",
	sentinelFloat:  "7.5",
	sentinelString: `"7"`,
	sentinelBool:   "true",
	sentinelObject: "{}",
}

// slotType is what the sentinel pass tells about one argument or input
// field.
type slotType struct {
	ref        schema.TypeRef
	kind       schema.Kind
	enumValues []string
	// inputFields holds required fields of ref's named type when it is an
	// input object.
	inputFields []*schema.Argument
}

// facts returns the facts about the named type behind t.
func (t slotType) facts() []schema.Fact {
	name := t.ref.Name()
	var facts []schema.Fact
	if t.kind != "" {
		facts = append(facts, schema.Fact{TypeName: name, Kind: t.kind})
	}
	for _, v := range t.enumValues {
		facts = append(facts, schema.Fact{TypeName: name, Kind: schema.Enum, EnumValue: v})
	}
	for _, f := range t.inputFields {
		facts = append(facts, schema.Fact{TypeName: name, Kind: schema.InputObject, InputField: f})
	}
	return facts
}

// typeSlot sends every sentinel as the value of name at the input slot of
// doc. Messages present in every response are about the rest of the
// document and are ignored. A sentinel is accepted when its response carries
// data, since execution errors only happen after validation, or when nothing
// else is left. ok is false when the type cannot be told.
func (o *Oracle) typeSlot(ctx context.Context, doc, name string, candidates []string) (slotType, bool, error) {
	var (
		responses [numSentinels][]string
		hasData   [numSentinels]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	for s := range numSentinels {
		g.Go(func() error {
			resp, err := o.sender.Send(gctx, substitute(doc, true, name+": "+sentinelLiterals[s]), nil)
			if err != nil {
				if client.IsInconclusive(err) {
					return errInconclusive
				}
				return err
			}
			responses[s] = resp.Messages()
			hasData[s] = resp.HasData()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, errInconclusive) && ctx.Err() == nil {
			return slotType{}, false, nil
		}
		return slotType{}, false, err
	}

	noise := commonMessages(responses[:])
	var (
		accepted [numSentinels]bool
		findings [numSentinels][]Finding
	)
	for s := range numSentinels {
		rest := without(responses[s], noise)
		accepted[s] = hasData[s] || len(rest) == 0
		findings[s], _ = o.classifier.ClassifyAll(rest)
	}

	var t slotType
	isEnum := false
	for s := range numSentinels {
		for _, f := range findings[s] {
			switch f.Verdict {
			case TypeMismatch, EnumMismatch, InvalidEnumValue:
				if ref, ok := f.Type(); ok && len(ref.String()) > len(t.ref.String()) {
					t.ref = ref
				}
				if f.Kind == schema.Enum {
					isEnum = true
					t.enumValues = appendUnique(t.enumValues, f.Suggestions...)
				}
			}
		}
	}
	if t.ref.IsZero() {
		t.ref = fallbackScalar(accepted)
	}
	if t.ref.IsZero() {
		return slotType{}, false, nil
	}
	if !accepted[sentinelNull] && !t.ref.IsNonNull() {
		t.ref = schema.NewTypeRef(t.ref.Name(), append([]schema.Kind{schema.NonNull}, t.ref.Wrappers()...)...)
	}

	base := t.ref.Name()
	for _, f := range findings[sentinelObject] {
		if f.Verdict != RequiredInputField || f.Owner != base {
			continue
		}
		if ref, ok := f.Type(); ok {
			t.inputFields = append(t.inputFields, &schema.Argument{Name: f.Name, Type: ref})
		}
	}

	scalarAccepted := accepted[sentinelInt] || accepted[sentinelFloat] || accepted[sentinelString] || accepted[sentinelBool]
	switch {
	case isEnum:
		t.kind = schema.Enum
	case schema.IsBuiltinScalar(base):
		t.kind = schema.Scalar
	case len(t.inputFields) > 0:
		t.kind = schema.InputObject
	case accepted[sentinelObject] && !scalarAccepted:
		t.kind = schema.InputObject
	case scalarAccepted:
		t.kind = schema.Scalar
	}

	if t.kind == schema.Enum && o.enumValues {
		values, err := o.probeEnumValues(ctx, doc, name, candidates, noise)
		if err != nil {
			return slotType{}, false, err
		}
		t.enumValues = appendUnique(t.enumValues, values...)
	}
	sort.Strings(t.enumValues)
	return t, true, nil
}

// fallbackScalar names a builtin scalar from the pattern of accepted
// sentinels, for servers whose rejections do not name the type.
func fallbackScalar(accepted [numSentinels]bool) schema.TypeRef {
	i, f, s, b := accepted[sentinelInt], accepted[sentinelFloat], accepted[sentinelString], accepted[sentinelBool]
	switch {
	case i && s && !f && !b:
		return schema.NamedType("ID")
	case i && f && !s && !b:
		return schema.NamedType("Float")
	case i && !f && !s && !b:
		return schema.NamedType("Int")
	case s && !i && !f && !b:
		return schema.NamedType("String")
	case b && !i && !f && !s:
		return schema.NamedType("Boolean")
	}
	return schema.TypeRef{}
}

// probeEnumValues sends upper-cased candidates as enum literals.
func (o *Oracle) probeEnumValues(ctx context.Context, doc, name string, candidates []string, noise map[string]bool) ([]string, error) {
	var (
		mu     sync.Mutex
		values []string
	)
	seen := map[string]bool{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, c := range candidates {
		value := strings.ToUpper(c)
		if seen[value] {
			continue
		}
		seen[value] = true
		g.Go(func() error {
			resp, err := o.send(gctx, substitute(doc, true, name+": "+value))
			if err != nil || resp == nil {
				return err
			}
			rest := without(resp.Messages(), noise)
			findings, _ := o.classifier.ClassifyAll(rest)

			mu.Lock()
			defer mu.Unlock()
			if resp.HasData() || len(rest) == 0 {
				values = appendUnique(values, value)
			}
			for _, f := range findings {
				if f.Verdict == InvalidEnumValue || f.Verdict == EnumMismatch {
					values = appendUnique(values, f.Suggestions...)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// commonMessages returns the messages present in every response.
func commonMessages(responses [][]string) map[string]bool {
	if len(responses) == 0 {
		return nil
	}
	common := map[string]bool{}
	for _, m := range responses[0] {
		common[m] = true
	}
	for _, msgs := range responses[1:] {
		present := map[string]bool{}
		for _, m := range msgs {
			present[m] = true
		}
		for m := range common {
			if !present[m] {
				delete(common, m)
			}
		}
	}
	return common
}

func without(msgs []string, drop map[string]bool) []string {
	var out []string
	for _, m := range msgs {
		if !drop[m] {
			out = append(out, m)
		}
	}
	return out
}

func sortedKeys(m map[string]schema.TypeRef) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
