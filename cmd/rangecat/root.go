package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	s3client "github.com/pithecene-io/rangefile/internal/s3"
	"github.com/pithecene-io/rangefile/rangefile"
	s3source "github.com/pithecene-io/rangefile/rangefile/s3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// envPrefix prefixes every environment variable that overrides a flag,
// e.g. RANGECAT_READ_AHEAD.
const envPrefix = "RANGECAT"

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v        *viper.Viper
	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *rangefile.Metrics

	// newS3 builds the S3 client on first use of an s3:// locator.
	newS3 func(ctx context.Context) (s3source.API, error)

	headers []string

	mu       sync.Mutex
	resolver *rangefile.Resolver
	gates    map[string]*rangefile.Gate
	s3       s3source.API
}

func newApp() *app {
	a := &app{
		v:        viper.New(),
		logger:   logrus.New(),
		registry: prometheus.NewRegistry(),
		gates:    make(map[string]*rangefile.Gate),
	}
	a.newS3 = a.defaultS3Client
	return a
}

func newRootCmd() *cobra.Command {
	return newApp().command()
}

// command builds the cobra command tree bound to a.
func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "rangecat [command] [flags]",
		Short: "Read byte ranges from HTTP, S3 and local objects",
		Long: `rangecat opens an object by locator (https://host/path, s3://bucket/key,
file:///path or a bare path) and reads from it through a buffered,
seekable range reader.

Every flag can also be set through the environment, for example
RANGECAT_READ_AHEAD=4194304 or RANGECAT_S3_PRESET=minio.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.Int64("read-ahead", rangefile.DefaultReadAheadSize, "minimum bytes fetched per cache miss")
	flags.String("log-level", "warning", "log level (debug, info, warning, error)")
	flags.Float64("rate-limit", 0, "maximum remote calls per second per backend, 0 for unlimited")
	flags.Bool("metrics", false, "print fetch metrics to stderr on exit")
	flags.StringArrayP("header", "H", nil, "extra HTTP request header as 'Name: value'")

	flags.String("s3-preset", "", "S3-compatible service preset (localstack, minio, r2)")
	flags.String("region", "", "S3 region")
	flags.String("endpoint", "", "S3 endpoint URL")
	flags.Bool("path-style", false, "use path-style S3 addressing")
	flags.String("access-key-id", "", "static S3 access key ID")
	flags.String("secret-access-key", "", "static S3 secret access key")
	flags.String("r2-account", "", "Cloudflare account ID for the r2 preset")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	// Flags are static, binding cannot fail.
	_ = a.v.BindPFlags(flags)

	root.AddCommand(a.statCmd())
	root.AddCommand(a.catCmd())
	return root
}

// setup configures logging and metrics once flags and environment are parsed.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.logger.SetOutput(cmd.ErrOrStderr())
	level, err := logrus.ParseLevel(a.v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	a.logger.SetLevel(level)

	// Header values may contain commas, which viper would split.
	if a.headers, err = cmd.Flags().GetStringArray("header"); err != nil {
		return err
	}

	if a.v.GetInt64("read-ahead") <= 0 {
		return fmt.Errorf("--read-ahead must be positive, got %d", a.v.GetInt64("read-ahead"))
	}

	a.metrics, err = rangefile.NewMetrics(a.registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	return nil
}

// open resolves locator into a File configured from flags.
func (a *app) open(ctx context.Context, locator string) (*rangefile.File, error) {
	loc, err := rangefile.ParseLocator(locator)
	if err != nil {
		return nil, err
	}

	opts := []rangefile.Option{
		rangefile.WithReadAhead(a.v.GetInt64("read-ahead")),
		rangefile.WithLogger(a.logger),
		rangefile.WithGate(a.gate(familyOf(loc.Scheme))),
	}
	if loc.Scheme == "http" || loc.Scheme == "https" {
		for _, h := range a.headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok {
				return nil, fmt.Errorf("--header %q: expected 'Name: value'", h)
			}
			opts = append(opts, rangefile.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
		}
	}

	f, err := a.resolve().Open(ctx, locator, opts...)
	if err != nil {
		return nil, err
	}
	a.logger.WithFields(logrus.Fields{
		"locator": locator,
		"size":    f.Size(),
	}).Debug("opened")
	return f, nil
}

func (a *app) resolve() *rangefile.Resolver {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolver == nil {
		a.resolver = rangefile.NewResolver()
		a.resolver.Register("s3", a.openS3)
	}
	return a.resolver
}

// gate returns the per-invocation gate for family, rate limited by
// --rate-limit and reporting to the app's registry.
func (a *app) gate(family string) *rangefile.Gate {
	a.mu.Lock()
	defer a.mu.Unlock()
	g, ok := a.gates[family]
	if !ok {
		g = rangefile.NewGate(family, rangefile.GateConfig{
			Limit:   rate.Limit(a.v.GetFloat64("rate-limit")),
			Burst:   1,
			Metrics: a.metrics,
		})
		a.gates[family] = g
	}
	return g
}

func familyOf(scheme string) string {
	switch scheme {
	case "http", "https":
		return rangefile.FamilyHTTP
	case "s3":
		return rangefile.FamilyS3
	case "file":
		return rangefile.FamilyFile
	}
	return scheme
}

// openS3 creates the S3 client lazily so that non-S3 invocations never load
// AWS configuration.
func (a *app) openS3(ctx context.Context, locator string, opts ...rangefile.Option) (rangefile.Source, error) {
	a.mu.Lock()
	client := a.s3
	a.mu.Unlock()

	if client == nil {
		c, err := a.newS3(ctx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		if a.s3 == nil {
			a.s3 = c
		}
		client = a.s3
		a.mu.Unlock()
	}
	return s3source.Opener(client)(ctx, locator, opts...)
}

// s3Config merges the selected preset with explicit flags.
func (a *app) s3Config() (s3client.ClientConfig, error) {
	var cfg s3client.ClientConfig
	switch preset := a.v.GetString("s3-preset"); preset {
	case "":
	case "r2":
		account := a.v.GetString("r2-account")
		if account == "" {
			return cfg, errors.New("--s3-preset r2 requires --r2-account")
		}
		cfg = s3client.R2(account, a.v.GetString("access-key-id"), a.v.GetString("secret-access-key"))
	default:
		p, err := s3client.Preset(preset)
		if err != nil {
			return cfg, err
		}
		cfg = p
	}

	return cfg.Merge(s3client.ClientConfig{
		Region:          a.v.GetString("region"),
		Endpoint:        a.v.GetString("endpoint"),
		UsePathStyle:    a.v.GetBool("path-style"),
		AccessKeyID:     a.v.GetString("access-key-id"),
		SecretAccessKey: a.v.GetString("secret-access-key"),
	}), nil
}

func (a *app) defaultS3Client(ctx context.Context) (s3source.API, error) {
	cfg, err := a.s3Config()
	if err != nil {
		return nil, err
	}
	a.logger.WithFields(logrus.Fields{
		"region":   cfg.Region,
		"endpoint": cfg.Endpoint,
	}).Debug("creating s3 client")
	return s3client.NewClient(ctx, cfg)
}

// finish reports file stats and, with --metrics, the gate metrics.
func (a *app) finish(cmd *cobra.Command, f *rangefile.File) error {
	a.logger.WithFields(logrus.Fields{
		"name":            f.Name(),
		"fetches":         f.Stats().Fetches,
		"bytes_fetched":   f.Stats().BytesFetched,
		"bytes_delivered": f.Stats().BytesDelivered,
	}).Info("done")

	if !a.v.GetBool("metrics") {
		return nil
	}
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.ErrOrStderr(), mf); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}
