/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samwightt/gqlblind/pkg/client"
	"github.com/samwightt/gqlblind/pkg/config"
	"github.com/samwightt/gqlblind/pkg/diagnostic"
	"github.com/samwightt/gqlblind/pkg/engine"
	"github.com/samwightt/gqlblind/pkg/logger"
	"github.com/samwightt/gqlblind/pkg/oracle"
	"github.com/samwightt/gqlblind/pkg/schema"
	"github.com/samwightt/gqlblind/pkg/wordlist"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type probeOptions struct {
	output        string
	document      string
	inputSchema   string
	wordlist      string
	validate      bool
	headerFiles   []string
	configPath    string
	metricsListen string

	concurrency   int
	maxRetries    int
	backoff       time.Duration
	backoffFactor float64
	timeout       time.Duration
	proxy         string
	noSSL         bool
	bucketSize    int
	enumValues    bool
	verbose       int
}

// applyFlags copies the flags that were set on the command line over cfg.
func (o *probeOptions) applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("concurrent-requests") {
		cfg.Concurrency = o.concurrency
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = o.maxRetries
	}
	if flags.Changed("backoff") {
		cfg.Backoff = o.backoff
	}
	if flags.Changed("backoff-factor") {
		cfg.BackoffFactor = o.backoffFactor
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if flags.Changed("proxy") {
		cfg.Proxy = o.proxy
	}
	if flags.Changed("no-ssl") {
		cfg.InsecureSkipVerify = o.noSSL
	}
	if flags.Changed("bucket-size") {
		cfg.BucketSize = o.bucketSize
	}
	if flags.Changed("enum-values") {
		cfg.ProbeEnumValues = o.enumValues
	}
	if flags.Changed("verbose") {
		cfg.Verbosity = o.verbose
	}
}

func NewProbeCmd() *cobra.Command {
	opts := &probeOptions{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Recover the schema of a GraphQL endpoint without introspection",
		Long: `Recovers the schema of a GraphQL endpoint that has introspection disabled.

Starting from the query root, every type is probed with documents built from
the wordlist. The server's validation errors tell which names exist, what
type they have and which arguments they take. Every newly found type is
probed in turn until nothing new turns up.

With -o the introspection result is rewritten after every type, so an
interrupted run can be resumed with -i. Without -o it is printed to stdout
when the run ends.

The seed document (-d) must contain FUZZ exactly once, where names should be
guessed. "-d -" reads it from stdin and "-d @file" from a file.

Settings can also come from a YAML file (--config); flags override it.
Progress is logged to stderr in logfmt.`,
		Example: `  # Recover a schema to a file
  gqlblind probe https://api.example.com/graphql -o schema.json

  # Start below a known field, with an auth header file
  gqlblind probe https://api.example.com/graphql -d 'query { viewer { FUZZ } }' -H headers.txt

  # Resume an interrupted run
  gqlblind probe https://api.example.com/graphql -i schema.json -o schema.json

  # Slow down and go through a proxy
  gqlblind probe https://api.example.com/graphql -c 2 -b 2s -x http://127.0.0.1:8080 -k`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "Write the introspection result here after every iteration (default: stdout at the end)")
	f.StringVarP(&opts.document, "document", "d", "", "Seed document with one FUZZ (default: query { FUZZ })")
	f.StringVarP(&opts.inputSchema, "input-schema", "i", "", "Resume from a schema: introspection JSON, or SDL when the file ends in .graphql")
	f.StringVarP(&opts.wordlist, "wordlist", "w", "", "Wordlist file, one name per line (default: embedded list)")
	f.BoolVarP(&opts.validate, "validate", "V", false, "Drop wordlist entries that are not valid GraphQL names")
	f.StringArrayVarP(&opts.headerFiles, "header-file", "H", nil, `File of "Key: Value" headers (can be specified multiple times)`)
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	f.StringVar(&opts.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address during the run")

	f.IntVarP(&opts.concurrency, "concurrent-requests", "c", defaults.Concurrency, "Maximum requests in flight")
	f.IntVarP(&opts.maxRetries, "max-retries", "m", defaults.MaxRetries, "Retries for failed requests")
	f.DurationVarP(&opts.backoff, "backoff", "b", defaults.Backoff, "Delay before the first retry")
	f.Float64Var(&opts.backoffFactor, "backoff-factor", defaults.BackoffFactor, "Growth of the retry delay per attempt")
	f.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Timeout for a single attempt")
	f.StringVarP(&opts.proxy, "proxy", "x", "", "Upstream proxy URL (default: from the environment)")
	f.BoolVarP(&opts.noSSL, "no-ssl", "k", false, "Skip TLS certificate verification")
	f.IntVar(&opts.bucketSize, "bucket-size", defaults.BucketSize, "Candidate names per request")
	f.BoolVar(&opts.enumValues, "enum-values", false, "Also try wordlist entries as enum values")
	f.CountVarP(&opts.verbose, "verbose", "v", "Log more detail (repeat for more)")

	return cmd
}

func runProbe(cmd *cobra.Command, url string, opts *probeOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	opts.applyFlags(cmd.Flags(), &cfg)
	cfg.URL = url
	if err := config.LoadHeaderFiles(cfg.Headers, opts.headerFiles...); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cmd.ErrOrStderr(), cfg.Verbosity)

	words, err := loadWords(opts, log)
	if err != nil {
		return err
	}

	var seed *schema.Schema
	if opts.inputSchema != "" {
		seed, err = readSchemaFile(opts.inputSchema)
		if err != nil {
			return fmt.Errorf("failed to load seed schema: %w", err)
		}
		st := seed.Stats()
		log.Info("loaded seed schema", "path", opts.inputSchema, "types", st.Types, "explored", st.Explored)
	}

	var document string
	if opts.document != "" {
		name, doc, err := readDocument(opts.document, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if diags := checkDocument(doc); len(diags) > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), diagnostic.RenderAll(name, doc, diags))
			return ErrInvalidDocument
		}
		document = doc
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	if opts.metricsListen != "" {
		shutdown, err := serveMetrics(opts.metricsListen, reg, log)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(ctx)
		}()
	}

	c, err := client.New(cfg, log, reg)
	if err != nil {
		return err
	}
	defer c.Close()

	var sink engine.Sink
	if opts.output != "" {
		sink = engine.FileSink{Path: opts.output}
	}

	e := engine.New(oracle.New(c, cfg, log), words, engine.Options{
		Schema:   seed,
		Document: document,
		Sink:     sink,
		Logger:   log,
	})
	s, runErr := e.Run(ctx)
	if s == nil {
		return runErr
	}

	if sink != nil {
		if err := sink.Save(s); err != nil {
			return errors.Join(runErr, err)
		}
	} else {
		data, err := s.MarshalIntrospection()
		if err != nil {
			return errors.Join(runErr, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}

	st := s.Stats()
	log.Info("done", "state", e.State(), "iterations", e.Iterations(), "types", st.Types,
		"explored", st.Explored, "fields", st.Fields, "arguments", st.Arguments, "enum_values", st.EnumValues)
	return runErr
}

func loadWords(opts *probeOptions, log *logger.Logger) ([]string, error) {
	words := wordlist.Default()
	if opts.wordlist != "" {
		var err error
		words, err = wordlist.Load(opts.wordlist)
		if err != nil {
			return nil, err
		}
	}
	if opts.validate {
		var dropped int
		words, dropped = wordlist.FilterNames(words)
		if dropped > 0 {
			log.Warn("dropped invalid names from the wordlist", "count", dropped)
		}
	}
	if len(words) == 0 {
		return nil, errors.New("wordlist is empty")
	}
	log.Debug("loaded wordlist", "words", len(words))
	return words, nil
}

// serveMetrics serves reg on addr until the returned function is called.
// Shutdown waits for open connections until ctx is done.
func serveMetrics(addr string, reg *prometheus.Registry, log *logger.Logger) (func(ctx context.Context), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ConnState: func(c net.Conn, state http.ConnState) {
			log.Debug("metrics connection", "remote", c.RemoteAddr().String(), "state", state.String())
		},
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "err", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String())

	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			log.Debug("metrics server shutdown failed", "err", err)
		}
	}, nil
}
