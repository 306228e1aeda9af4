package oracle

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samwightt/gqlblind/pkg/wordlist"
)

// discovery describes one name namespace at a placeholder.
type discovery struct {
	doc   string
	input bool
	ns    Namespace
	// owner is the type declaring the names, or for arguments the field.
	owner string
	// ownerType is the type declaring owner, for arguments only.
	ownerType string
}

// render fills the placeholder with names.
func (d discovery) render(names []string) string {
	if d.input {
		return strings.Join(names, ": 7, ") + ": 7"
	}
	return strings.Join(names, " ")
}

// matches reports whether f is about a name in d's namespace.
func (d discovery) matches(f Finding) bool {
	if f.Namespace != d.ns {
		return false
	}
	if f.Owner != "" && f.Owner != d.owner {
		return false
	}
	if d.ownerType != "" && f.OwnerType != "" && f.OwnerType != d.ownerType {
		return false
	}
	return true
}

func (d discovery) label(name string) string {
	if d.ns == NamespaceArgument {
		return d.ownerType + "." + d.owner + "(" + name + ")"
	}
	return d.owner + "." + name
}

type discovered struct {
	names    []string
	findings []Finding
}

type bucketResult struct {
	valid        []string
	inconclusive []string
	findings     []Finding
}

// discover splits candidates into buckets, probes them concurrently and
// returns the valid names, sorted, along with every finding seen.
func (o *Oracle) discover(ctx context.Context, d discovery, candidates []string, frag *Fragment) (discovered, error) {
	var (
		mu       sync.Mutex
		valid    = map[string]bool{}
		findings []Finding
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for start := 0; start < len(candidates); start += o.bucketSize {
		end := min(start+o.bucketSize, len(candidates))
		bucket := candidates[start:end]
		g.Go(func() error {
			res, err := o.probeBucket(gctx, d, bucket)
			if err != nil {
				return err
			}
			for _, name := range res.inconclusive {
				o.inconclusive(frag, d.label(name), "bucket failed")
			}
			mu.Lock()
			defer mu.Unlock()
			for _, name := range res.valid {
				valid[name] = true
			}
			findings = append(findings, res.findings...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return discovered{}, err
	}

	names := make([]string, 0, len(valid))
	for name := range valid {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		o.log.Debug("names found", "owner", d.owner, "namespace", d.ns, "count", len(names))
	}
	return discovered{names: names, findings: findings}, nil
}

// probeBucket sends one bucket. A bucket of several names that fails as a
// whole is retried name by name; a single name that fails is inconclusive.
func (o *Oracle) probeBucket(ctx context.Context, d discovery, names []string) (bucketResult, error) {
	resp, err := o.send(ctx, substitute(d.doc, d.input, d.render(names)))
	if err != nil {
		return bucketResult{}, err
	}
	if resp == nil {
		return o.splitBucket(ctx, d, names)
	}
	if resp.HasData() {
		return bucketResult{valid: names}, nil
	}

	findings, unclassified := o.classifier.ClassifyAll(resp.Messages())
	for _, f := range findings {
		if f.Verdict == Aborted {
			return o.splitBucket(ctx, d, names)
		}
	}
	for _, msg := range unclassified {
		o.log.Debug("unclassified message", "owner", d.owner, "namespace", d.ns, "message", msg)
	}

	var (
		invalid   = map[string]bool{}
		confirmed = map[string]bool{}
		suggested []string
	)
	for _, f := range findings {
		if !d.matches(f) {
			continue
		}
		switch f.Verdict {
		case InvalidName, AbstractType:
			invalid[f.Name] = true
			for _, s := range f.Suggestions {
				if wordlist.IsName(s) && !strings.HasPrefix(s, "__") {
					suggested = append(suggested, s)
				}
			}
		default:
			if f.Name != "" {
				confirmed[f.Name] = true
			}
		}
	}

	res := bucketResult{findings: findings}
	for _, name := range names {
		switch {
		case invalid[name]:
		case confirmed[name] || len(unclassified) == 0:
			res.valid = append(res.valid, name)
		default:
			res.inconclusive = append(res.inconclusive, name)
		}
	}
	res.valid = appendUnique(res.valid, suggested...)
	for name := range confirmed {
		res.valid = appendUnique(res.valid, name)
	}
	return res, nil
}

func (o *Oracle) splitBucket(ctx context.Context, d discovery, names []string) (bucketResult, error) {
	if len(names) == 1 {
		return bucketResult{inconclusive: names}, nil
	}

	var (
		mu  sync.Mutex
		res bucketResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, name := range names {
		g.Go(func() error {
			single, err := o.probeBucket(gctx, d, []string{name})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			res.valid = append(res.valid, single.valid...)
			res.inconclusive = append(res.inconclusive, single.inconclusive...)
			res.findings = append(res.findings, single.findings...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return bucketResult{}, err
	}
	return res, nil
}
