// Package config loads the YAML run configuration and maps it onto the
// options of each component.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/subprobe-go/internal/fetch"
	"github.com/John-Robertt/subprobe-go/internal/model"
	"github.com/John-Robertt/subprobe-go/internal/normalize"
	"github.com/John-Robertt/subprobe-go/internal/probe"
	"github.com/John-Robertt/subprobe-go/internal/source"
)

type Config struct {
	Input     Input     `yaml:"input"`
	Fetch     Fetch     `yaml:"fetch"`
	Normalize Normalize `yaml:"normalize"`
	Probe     Probe     `yaml:"probe"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Output    Output    `yaml:"output"`
	Log       Log       `yaml:"log"`
	Server    Server    `yaml:"server"`
}

type Input struct {
	File   string `yaml:"file"`
	Format string `yaml:"format"` // lines | blocks
}

type Fetch struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	MaxRedirects int           `yaml:"max_redirects"`
	UserAgent    string        `yaml:"user_agent"`
}

type Normalize struct {
	Strategy  string   `yaml:"strategy"` // protocol | percent
	MinLength int      `yaml:"min_length"`
	Denylist  []string `yaml:"denylist"`
}

type Probe struct {
	Method          string        `yaml:"method"` // icmp | tcp
	Count           int           `yaml:"count"`
	Timeout         time.Duration `yaml:"timeout"`
	TCPPort         int           `yaml:"tcp_port"`
	Privileged      bool          `yaml:"privileged"`
	GoodThreshold   time.Duration `yaml:"good_threshold"`
	WarnThreshold   time.Duration `yaml:"warn_threshold"`
	MinValid        time.Duration `yaml:"min_valid"`
	ExclusiveBounds bool          `yaml:"exclusive_bounds"`
}

type Pipeline struct {
	SourceConcurrency int `yaml:"source_concurrency"`
	ProbeConcurrency  int `yaml:"probe_concurrency"`
	MaxPerSource      int `yaml:"max_per_source"`
}

type Output struct {
	Dir       string   `yaml:"dir"`
	PerSource bool     `yaml:"per_source"`
	Encodings []string `yaml:"encodings"` // raw, base64
}

type Log struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`
}

type Server struct {
	Listen            string        `yaml:"listen"`
	Interval          time.Duration `yaml:"interval"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type Error struct {
	AppError model.AppError
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Default returns a configuration with every default filled in.
func Default() Config {
	return Config{}.WithDefaults()
}

// Load reads the YAML file at path. Missing keys keep their defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{
			AppError: model.AppError{Code: "CONFIG_READ_ERROR", Message: "cannot read config file", Stage: "config", URL: path},
			Cause:    err,
		}
	}
	cfg, err := Parse(string(b))
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.AppError.URL = path
		}
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes content strictly (unknown keys and multiple documents are
// rejected), applies defaults and validates.
func Parse(content string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(content) != "" {
		if err := yamlDecodeStrict(content, &cfg); err != nil {
			return Config{}, &Error{
				AppError: model.AppError{
					Code:    "CONFIG_PARSE_ERROR",
					Message: "config YAML is invalid",
					Stage:   "config",
					Snippet: truncateSnippet(content, 200),
				},
				Cause: err,
			}
		}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) WithDefaults() Config {
	if c.Input.File == "" {
		c.Input.File = "input.txt"
	}
	if c.Input.Format == "" {
		c.Input.Format = string(source.FormatLines)
	}

	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = fetch.DefaultTimeout
	}
	if c.Fetch.MaxBytes == 0 {
		c.Fetch.MaxBytes = fetch.DefaultMaxBytes
	}
	if c.Fetch.MaxRedirects == 0 {
		c.Fetch.MaxRedirects = fetch.DefaultMaxRedirects
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = fetch.DefaultUserAgent
	}

	if c.Normalize.Strategy == "" {
		c.Normalize.Strategy = string(normalize.StrategyProtocol)
	}
	if c.Normalize.MinLength == 0 {
		c.Normalize.MinLength = normalize.DefaultMinLength
	}
	if c.Normalize.Denylist == nil {
		c.Normalize.Denylist = append([]string(nil), normalize.DefaultDenylist...)
	}

	if c.Probe.Method == "" {
		c.Probe.Method = string(probe.MethodICMP)
	}
	if c.Probe.Count == 0 {
		c.Probe.Count = probe.DefaultCount
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = probe.DefaultTimeout
	}
	if c.Probe.TCPPort == 0 {
		c.Probe.TCPPort = probe.DefaultTCPPort
	}
	if c.Probe.GoodThreshold == 0 {
		c.Probe.GoodThreshold = probe.DefaultGood
	}
	if c.Probe.WarnThreshold == 0 {
		c.Probe.WarnThreshold = probe.DefaultWarn
	}

	if c.Pipeline.SourceConcurrency == 0 {
		c.Pipeline.SourceConcurrency = 8
	}
	if c.Pipeline.ProbeConcurrency == 0 {
		c.Pipeline.ProbeConcurrency = 32
	}
	if c.Pipeline.MaxPerSource == 0 {
		c.Pipeline.MaxPerSource = 1000
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if len(c.Output.Encodings) == 0 {
		c.Output.Encodings = []string{"raw", "base64"}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Validate reports the first inconsistent setting as a *Error.
func (c Config) Validate() error {
	if _, err := source.ParseFormat(c.Input.Format); err != nil {
		return invalid("input.format", err)
	}
	if c.Fetch.Timeout < 0 {
		return invalid("fetch.timeout", errors.New("must be positive"))
	}
	if c.Fetch.MaxBytes < 0 {
		return invalid("fetch.max_bytes", errors.New("must be positive"))
	}
	if c.Fetch.MaxRedirects < 0 {
		return invalid("fetch.max_redirects", errors.New("must be positive"))
	}
	if _, err := normalize.ParseStrategy(c.Normalize.Strategy); err != nil {
		return invalid("normalize.strategy", err)
	}
	if c.Normalize.MinLength < 0 {
		return invalid("normalize.min_length", errors.New("must not be negative"))
	}
	if _, err := probe.ParseMethod(c.Probe.Method); err != nil {
		return invalid("probe.method", err)
	}
	if c.Probe.Count < 1 {
		return invalid("probe.count", errors.New("must be at least 1"))
	}
	if c.Probe.Timeout < 0 {
		return invalid("probe.timeout", errors.New("must be positive"))
	}
	if c.Probe.TCPPort < 1 || c.Probe.TCPPort > 65535 {
		return invalid("probe.tcp_port", fmt.Errorf("%d out of range", c.Probe.TCPPort))
	}
	if c.Probe.GoodThreshold < 0 || c.Probe.MinValid < 0 {
		return invalid("probe.good_threshold", errors.New("thresholds must not be negative"))
	}
	if c.Probe.WarnThreshold < c.Probe.GoodThreshold {
		return invalid("probe.warn_threshold", fmt.Errorf("warn %s is below good %s", c.Probe.WarnThreshold, c.Probe.GoodThreshold))
	}
	if c.Probe.MinValid > c.Probe.GoodThreshold {
		return invalid("probe.min_valid", fmt.Errorf("min_valid %s is above good %s", c.Probe.MinValid, c.Probe.GoodThreshold))
	}
	if c.Pipeline.SourceConcurrency < 1 {
		return invalid("pipeline.source_concurrency", errors.New("must be at least 1"))
	}
	if c.Pipeline.ProbeConcurrency < 1 {
		return invalid("pipeline.probe_concurrency", errors.New("must be at least 1"))
	}
	if c.Pipeline.MaxPerSource < 1 {
		return invalid("pipeline.max_per_source", errors.New("must be at least 1"))
	}
	for _, e := range c.Output.Encodings {
		if e != "raw" && e != "base64" {
			return invalid("output.encodings", fmt.Errorf("unknown encoding %q (want raw|base64)", e))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", fmt.Errorf("unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return invalid("log.format", fmt.Errorf("unknown format %q", c.Log.Format))
	}
	if c.Server.Interval < 0 {
		return invalid("server.interval", errors.New("must not be negative"))
	}
	return nil
}

func (c Config) FetchOptions() fetch.Options {
	return fetch.Options{
		Timeout:      c.Fetch.Timeout,
		MaxBytes:     c.Fetch.MaxBytes,
		MaxRedirects: c.Fetch.MaxRedirects,
		UserAgent:    c.Fetch.UserAgent,
	}
}

func (c Config) NormalizeOptions() normalize.Options {
	strategy, _ := normalize.ParseStrategy(c.Normalize.Strategy)
	return normalize.Options{
		Strategy:  strategy,
		MinLength: c.Normalize.MinLength,
		Denylist:  c.Normalize.Denylist,
	}
}

func (c Config) ProbeOptions() probe.Options {
	return probe.Options{
		Count:   c.Probe.Count,
		Timeout: c.Probe.Timeout,
		Classifier: probe.Classifier{
			Good:      c.Probe.GoodThreshold,
			Warn:      c.Probe.WarnThreshold,
			MinValid:  c.Probe.MinValid,
			Exclusive: c.Probe.ExclusiveBounds,
		},
	}
}

func (c Config) PingerConfig() probe.PingerConfig {
	method, _ := probe.ParseMethod(c.Probe.Method)
	return probe.PingerConfig{
		Method:     method,
		TCPPort:    c.Probe.TCPPort,
		Privileged: c.Probe.Privileged,
	}
}

func (c Config) InputFormat() source.Format {
	f, _ := source.ParseFormat(c.Input.Format)
	return f
}

func invalid(field string, cause error) error {
	return &Error{
		AppError: model.AppError{
			Code:    "CONFIG_VALIDATE_ERROR",
			Message: fmt.Sprintf("invalid %s", field),
			Stage:   "config",
			Hint:    field,
		},
		Cause: cause,
	}
}

func yamlDecodeStrict(content string, out any) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}

	// Reject multi-document YAML to keep behavior deterministic.
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max]
}
