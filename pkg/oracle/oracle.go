// Package oracle resolves an unknown position of a GraphQL document into the
// names that are valid there, and the types behind them, by reading the
// server's validation errors.
//
// A probe target is a document with one placeholder. For a selection target
// the placeholder stands for field names of the target type; for an input
// target it stands for "name: value" entries of an input-object literal.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/samwightt/gqlblind/pkg/client"
	"github.com/samwightt/gqlblind/pkg/config"
	"github.com/samwightt/gqlblind/pkg/logger"
	"github.com/samwightt/gqlblind/pkg/schema"
)

// Placeholder marks the probed position in a target document.
const Placeholder = "FUZZ"

// typeProbe is a field name no schema is expected to define. It is selected
// under a field to learn the field's return type from the rejection.
const typeProbe = "lol"

var inputSlotRegex = regexp.MustCompile(Placeholder + `\s*:\s*[^\s,)}]+`)

// Target is one position to resolve.
type Target struct {
	// TypeName is the type whose members stand at the placeholder.
	TypeName string
	// Document contains Placeholder exactly once.
	Document string
	// Input is set when the placeholder sits inside an input-object literal,
	// as in "{ FUZZ: 7 }".
	Input bool
}

// Oracle probes targets through a client.Sender. It is safe for concurrent
// use.
type Oracle struct {
	sender      client.Sender
	classifier  *Classifier
	bucketSize  int
	concurrency int
	enumValues  bool
	log         *logger.Logger
}

// New returns an oracle using the default classifier. Bucket size, fan-out
// and enum-value probing come from cfg.
func New(sender client.Sender, cfg config.Config, log *logger.Logger) *Oracle {
	if log == nil {
		log = logger.Nop()
	}
	bucket := cfg.BucketSize
	if bucket < 1 {
		bucket = 1
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Oracle{
		sender:      sender,
		classifier:  DefaultClassifier(),
		bucketSize:  bucket,
		concurrency: concurrency,
		enumValues:  cfg.ProbeEnumValues,
		log:         log.With("component", "oracle"),
	}
}

// WithClassifier returns a copy of o that classifies messages with c.
func (o *Oracle) WithClassifier(c *Classifier) *Oracle {
	cp := *o
	cp.classifier = c
	return &cp
}

// Probe discovers every member of target.TypeName reachable at the
// placeholder, together with return types, arguments and argument types.
// Names whose validity cannot be decided are recorded as inconclusive and
// never reported as facts. Only fatal transport errors and cancellation are
// returned as errors.
func (o *Oracle) Probe(ctx context.Context, target Target, words []string) (*Fragment, error) {
	if strings.Count(target.Document, Placeholder) != 1 {
		return nil, fmt.Errorf("document must contain %s exactly once: %q", Placeholder, target.Document)
	}

	frag := NewFragment(target.TypeName)
	candidates := candidateNames(words)

	var err error
	if target.Input {
		err = o.probeInputObject(ctx, target, candidates, frag)
	} else {
		err = o.probeSelection(ctx, target, candidates, frag)
	}
	if err != nil {
		return nil, err
	}
	return frag, nil
}

func (o *Oracle) probeSelection(ctx context.Context, target Target, candidates []string, frag *Fragment) error {
	d := discovery{
		doc:   target.Document,
		ns:    NamespaceField,
		owner: target.TypeName,
	}
	found, err := o.discover(ctx, d, candidates, frag)
	if err != nil {
		return err
	}

	// Fields asked for on an abstract type are answered with the possible
	// types that do have them.
	var possible []string
	for _, f := range found.findings {
		if f.Verdict == AbstractType && f.Owner == target.TypeName {
			possible = appendUnique(possible, f.PossibleTypes...)
		}
	}
	if len(possible) > 0 {
		kind := schema.Union
		if len(found.names) > 0 {
			kind = schema.Interface
		}
		frag.Add(schema.Fact{TypeName: target.TypeName, Kind: kind})
		for _, p := range possible {
			frag.Add(
				schema.Fact{TypeName: target.TypeName, PossibleType: p},
				schema.Fact{TypeName: p, Kind: schema.Object},
			)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, name := range found.names {
		g.Go(func() error {
			return o.probeField(gctx, target, name, candidates, frag)
		})
	}
	return g.Wait()
}

func (o *Oracle) probeInputObject(ctx context.Context, target Target, candidates []string, frag *Fragment) error {
	d := discovery{
		doc:   target.Document,
		input: true,
		ns:    NamespaceInputField,
		owner: target.TypeName,
	}
	found, err := o.discover(ctx, d, candidates, frag)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, name := range found.names {
		g.Go(func() error {
			t, ok, err := o.typeSlot(gctx, d.doc, name, candidates)
			if err != nil {
				return err
			}
			if !ok {
				o.inconclusive(frag, d.label(name), "input field type unresolved")
				return nil
			}
			frag.Add(schema.Fact{
				TypeName:   target.TypeName,
				Kind:       schema.InputObject,
				InputField: &schema.Argument{Name: name, Type: t.ref},
			})
			frag.Add(t.facts()...)
			return nil
		})
	}
	return g.Wait()
}

// probeField resolves the return type and the arguments of one confirmed
// field of target.TypeName.
func (o *Oracle) probeField(ctx context.Context, target Target, name string, candidates []string, frag *Fragment) error {
	label := target.TypeName + "." + name
	fr, ok, err := o.inferField(ctx, target, name)
	if err != nil {
		return err
	}
	if !ok {
		o.inconclusive(frag, label, "return type unresolved")
		return nil
	}

	tail := ""
	if fr.structured {
		tail = " { __typename }"
	}
	d := discovery{
		doc:       substitute(target.Document, false, name+"("+Placeholder+": 7)"+tail),
		input:     true,
		ns:        NamespaceArgument,
		owner:     name,
		ownerType: target.TypeName,
	}
	found, err := o.discover(ctx, d, candidates, frag)
	if err != nil {
		return err
	}
	argNames := appendUnique(found.names, sortedKeys(fr.required)...)

	args := make([]*schema.Argument, len(argNames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, arg := range argNames {
		g.Go(func() error {
			t, ok, err := o.typeSlot(gctx, d.doc, arg, candidates)
			if err != nil {
				return err
			}
			if !ok {
				ref, known := fr.required[arg]
				if !known {
					o.inconclusive(frag, d.label(arg), "argument type unresolved")
					return nil
				}
				t = slotType{ref: ref}
			}
			args[i] = &schema.Argument{Name: arg, Type: t.ref}
			frag.Add(t.facts()...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	field := &schema.Field{Name: name, Type: fr.ref}
	for _, a := range args {
		if a != nil {
			field.Args = append(field.Args, a)
		}
	}
	frag.Add(schema.Fact{TypeName: target.TypeName, Field: field})
	if fr.kind != "" {
		frag.Add(schema.Fact{TypeName: fr.ref.Name(), Kind: fr.kind})
	}
	for _, p := range fr.possible {
		frag.Add(
			schema.Fact{TypeName: fr.ref.Name(), PossibleType: p},
			schema.Fact{TypeName: p, Kind: schema.Object},
		)
	}
	return nil
}

// ProbeTypename resolves the type at the placeholder of doc by selecting a
// field no type has. input reports whether the placeholder sits inside an
// input-object literal.
func (o *Oracle) ProbeTypename(ctx context.Context, doc string) (typeName string, input bool, err error) {
	if strings.Count(doc, Placeholder) != 1 {
		return "", false, fmt.Errorf("document must contain %s exactly once", Placeholder)
	}
	input = inputSlotRegex.MatchString(doc)
	content := typeProbe
	if input {
		content += ": 7"
	}

	resp, err := o.sender.Send(ctx, substitute(doc, input, content), nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to probe the type at %s: %w", Placeholder, err)
	}
	findings, _ := o.classifier.ClassifyAll(resp.Messages())
	for _, f := range findings {
		if f.Name != typeProbe || f.Owner == "" {
			continue
		}
		if f.Verdict != InvalidName && f.Verdict != AbstractType {
			continue
		}
		switch f.Namespace {
		case NamespaceField:
			return f.Owner, false, nil
		case NamespaceInputField:
			return f.Owner, true, nil
		}
	}
	return "", input, fmt.Errorf("could not resolve the type at %s: %s", Placeholder, strings.Join(resp.Messages(), "; "))
}

// ProbeRoots asks each operation type for its __typename. The query probe
// must get an answer from the server: any transport or protocol failure is
// returned. Mutation and subscription roots are left out when the server
// does not support them.
func (o *Oracle) ProbeRoots(ctx context.Context) (map[schema.Operation]string, error) {
	roots := map[schema.Operation]string{}
	for _, op := range []schema.Operation{schema.OperationQuery, schema.OperationMutation, schema.OperationSubscription} {
		resp, err := o.sender.Send(ctx, string(op)+" { __typename }", nil)
		if err != nil {
			if op == schema.OperationQuery || !client.IsInconclusive(err) {
				return nil, fmt.Errorf("failed to probe the %s root: %w", op, err)
			}
			o.log.Debug("root probe failed", "operation", op, "err", err)
			continue
		}
		if !resp.HasData() {
			continue
		}
		var data struct {
			Typename string `json:"__typename"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			o.log.Warn("unexpected root probe response", "operation", op, "err", err)
			continue
		}
		if data.Typename != "" {
			roots[op] = data.Typename
		}
	}
	return roots, nil
}

// send posts doc and classifies the response. A nil response with a nil
// error means the request failed in a way that only makes this probe
// inconclusive.
func (o *Oracle) send(ctx context.Context, doc string) (*client.Response, error) {
	resp, err := o.sender.Send(ctx, doc, nil)
	if err != nil {
		if client.IsInconclusive(err) {
			o.log.Debug("probe request failed", "err", err)
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

func (o *Oracle) inconclusive(frag *Fragment, label, reason string) {
	o.log.Debug("inconclusive", "name", label, "reason", reason)
	frag.Inconclusive(label)
}

// substitute replaces the placeholder of doc with content. For input slots
// the placeholder's value is replaced too.
func substitute(doc string, input bool, content string) string {
	if input {
		if loc := inputSlotRegex.FindStringIndex(doc); loc != nil {
			return doc[:loc[0]] + content + doc[loc[1]:]
		}
	}
	return strings.Replace(doc, Placeholder, content, 1)
}

// candidateNames removes duplicates, empty names and names reserved for
// introspection.
func candidateNames(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || strings.HasPrefix(w, "__") || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func appendUnique(list []string, more ...string) []string {
	for _, m := range more {
		dup := false
		for _, l := range list {
			if l == m {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, m)
		}
	}
	return list
}
