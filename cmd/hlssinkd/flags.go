package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds user-supplied flag values prior to translation into
// sink.Config/storage construction, so main can validate and map. Grounded
// on the teacher's cmd/rtmp-server/flags.go cliConfig shape.
type cliConfig struct {
	manifestName string
	outDir       string
	windowed     bool
	windowSecs   float64
	fragmentSecs float64
	persisted    bool
	logLevel     string
	showVersion  bool

	backends []string // backend=arg pairs, e.g. "fs=./out", "azblob=https://acct.blob.core.windows.net/container"

	webhookURLs       []string // event_type=url pairs
	notifyConcurrency int

	demoFragments int // number of synthetic fragments to emit per track before end_of_stream; 0 = run until signaled
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("hlssinkd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var backends stringSliceFlag
	var webhooks stringSliceFlag

	fs.StringVar(&cfg.manifestName, "manifest-name", "stream", "Base name for the generated manifests")
	fs.StringVar(&cfg.outDir, "out-dir", "hls-out", "Directory for the fs storage backend")
	fs.BoolVar(&cfg.windowed, "windowed", true, "Republish the manifest after every write (live); false for VOD-style single publish at end_of_stream")
	fs.Float64Var(&cfg.windowSecs, "window-seconds", 60, "Sliding window duration in seconds (ignored when -windowed=false)")
	fs.Float64Var(&cfg.fragmentSecs, "fragment-seconds", 4, "Synthetic fragment duration in seconds")
	fs.BoolVar(&cfg.persisted, "persisted", false, "Retain evicted segments as stale_segments for from_beginning replay")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	fs.Var(&backends, "storage", "Storage backend in format name=arg (fs=<dir> or azblob=<https-container-url>), repeatable")
	fs.Var(&webhooks, "notify-webhook", "Webhook notifier in format event_type=url, repeatable")
	fs.IntVar(&cfg.notifyConcurrency, "notify-concurrency", 10, "Maximum concurrent notifier executions")
	fs.IntVar(&cfg.demoFragments, "demo-fragments", 20, "Number of synthetic fragments to generate per track before end_of_stream (0 = run until interrupted)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.backends = backends
	cfg.webhookURLs = webhooks

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}
	if cfg.windowSecs <= 0 {
		return nil, errors.New("window-seconds must be positive")
	}
	if cfg.fragmentSecs <= 0 {
		return nil, errors.New("fragment-seconds must be positive")
	}
	if cfg.notifyConcurrency < 1 || cfg.notifyConcurrency > 100 {
		return nil, fmt.Errorf("notify-concurrency must be between 1 and 100, got %d", cfg.notifyConcurrency)
	}
	for _, b := range cfg.backends {
		if err := validateAssignment("storage", b); err != nil {
			return nil, err
		}
	}
	for _, w := range cfg.webhookURLs {
		if err := validateAssignment("notify-webhook", w); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// stringSliceFlag implements flag.Value for repeatable string flags.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ", ") }
func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func validateAssignment(flagName, assignment string) error {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid %s format %q, expected key=value", flagName, assignment)
	}
	return nil
}

func splitAssignment(s string) (string, string) {
	parts := strings.SplitN(s, "=", 2)
	return parts[0], parts[1]
}
