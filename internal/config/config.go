package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"iconresolve/internal/logging"
)

const (
	defaultCatalogPath = "platforms.txt"
	defaultOutputPath  = "platform_icons.yaml"
	defaultTimeout     = 10 * time.Second
)

var defaultVariants = []string{"svg", "png"}

type Config struct {
	Env         string
	BaseURL     string
	Variants    []string
	Timeout     time.Duration
	Root        string
	CatalogPath string
	OutputPath  string
	Check       bool
	Interval    time.Duration
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	Artifact    ArtifactConfig
}

type ArtifactConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether enough is configured to talk to an object store.
func (c ArtifactConfig) CanUseS3() bool {
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// Load reads .env (if present), the environment and then args. Flags win over
// environment variables, which win over defaults.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("iconresolve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	baseURL := fs.String("base-url", strings.TrimSpace(os.Getenv("ICON_BASE_URL")), "base URL the icons are served from")
	variants := fs.String("variants", firstNonEmpty(strings.TrimSpace(os.Getenv("ICON_VARIANTS")), strings.Join(defaultVariants, ",")), "comma-separated variant priority list")
	timeout := fs.Duration("timeout", envDuration("ICON_CHECK_TIMEOUT", defaultTimeout), "timeout for a single existence check")
	root := fs.String("root", firstNonEmpty(strings.TrimSpace(os.Getenv("ICON_ROOT")), "."), "directory catalog and output paths are relative to")
	catalog := fs.String("catalog", firstNonEmpty(strings.TrimSpace(os.Getenv("ICON_CATALOG")), defaultCatalogPath), "platform catalog file")
	out := fs.String("out", firstNonEmpty(strings.TrimSpace(os.Getenv("ICON_OUTPUT")), defaultOutputPath), "generated table path")
	check := fs.Bool("check", envBool("ICON_CHECK_ONLY", false), "fail if the stored table is out of date instead of writing it")
	interval := fs.Duration("interval", envDuration("ICON_INTERVAL", 0), "re-resolve on this period until interrupted; 0 runs once")
	logLevel := fs.String("log-level", firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info"), "debug, info, warn or error")
	logFormat := fs.String("log-format", firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "text"), "text or json")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	cfg := &Config{
		Env:         env,
		BaseURL:     strings.TrimSpace(*baseURL),
		Variants:    splitList(*variants),
		Timeout:     *timeout,
		Root:        *root,
		CatalogPath: *catalog,
		OutputPath:  *out,
		Check:       *check,
		Interval:    *interval,
		LogLevel:    *logLevel,
		LogFormat:   *logFormat,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Artifact:    loadArtifactConfig(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is required (ICON_BASE_URL or -base-url)"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base url %q must be an absolute http(s) URL", c.BaseURL))
	}
	if len(c.Variants) == 0 {
		errs = append(errs, errors.New("at least one variant is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if strings.TrimSpace(c.CatalogPath) == "" {
		errs = append(errs, errors.New("catalog path is required"))
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must not be negative, got %s", c.Interval))
	}
	if c.Interval > 0 && c.Check {
		errs = append(errs, errors.New("check mode runs once and cannot be combined with an interval"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func loadArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		Endpoint:  firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")), strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT"))),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "iconresolve-artifacts"),
		UseSSL:    envBool("ARTIFACT_S3_USE_SSL", true),
	}
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), ".")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
