// Package config builds the validated JobConfig from a .env file, the
// process environment and command-line overrides, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/felipepimentel/aibook/internal/ai"
	"github.com/felipepimentel/aibook/internal/book"
	"github.com/felipepimentel/aibook/internal/output"
	"github.com/felipepimentel/aibook/internal/summarize"
)

// JobConfig is built once per run and never changes afterwards.
type JobConfig struct {
	Inputs       []string
	OutputDir    string
	Provider     string
	Model        string
	Language     string
	DetailLevel  string
	OutputFormat string
	Workers      int
	MaxAttempts  int
	RateLimit    float64
	Timeout      time.Duration
	Proxy        string
	CachePath    string
	Verbose      bool

	// Filled by Validate from the per-provider settings below.
	APIKey      string
	ProviderURL string

	apiKeys map[string]string
	urls    map[string]string
}

// Load reads the given .env files (default ".env"; a missing default file is
// not an error) and the environment into a JobConfig with defaults applied.
func Load(files ...string) (*JobConfig, error) {
	var fileVals map[string]string
	if len(files) == 0 {
		vals, err := godotenv.Read()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
		fileVals = vals
	} else {
		vals, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("read env files: %w", err)
		}
		fileVals = vals
	}
	get := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileVals[key])
	}

	cfg := &JobConfig{
		Provider:     withDefault(get("AI_PROVIDER"), ai.BackendOpenRouter),
		Model:        get("MODEL_NAME"),
		Language:     withDefault(get("OUTPUT_LANGUAGE"), withDefault(get("DEFAULT_LANGUAGE"), book.LangEnglish)),
		DetailLevel:  summarize.DetailMedium,
		OutputFormat: output.FormatMarkdown,
		Proxy:        get("AI_PROXY"),
		CachePath:    get("CACHE_PATH"),
		apiKeys: map[string]string{
			ai.BackendOpenRouter: withDefault(get("OPENROUTER_API_KEY"), get("API_KEY")),
			ai.BackendStackSpot:  withDefault(get("STACKSPOT_API_KEY"), get("API_KEY")),
			ai.BackendGemini:     withDefault(get("GEMINI_API_KEY"), withDefault(get("GOOGLE_API_KEY"), get("API_KEY"))),
		},
		urls: map[string]string{
			ai.BackendOpenRouter: get("OPENROUTER_URL"),
			ai.BackendStackSpot:  get("STACKSPOT_URL"),
		},
	}

	var err error
	if cfg.MaxAttempts, err = intVar(get, "MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Workers, err = intVar(get, "MAX_WORKERS", 0); err != nil {
		return nil, err
	}
	secs, err := intVar(get, "REQUEST_TIMEOUT_SECS", 120)
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(secs) * time.Second
	if v := get("RATE_LIMIT"); v != "" {
		if cfg.RateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("RATE_LIMIT: %w", err)
		}
	}
	return cfg, nil
}

func intVar(get func(string) string, key string, def int) (int, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// NormalizeLanguage maps user spellings (pt, pt-BR, ptbr, en-US...) to the
// two supported language tags.
func NormalizeLanguage(lang string) (string, error) {
	l := strings.ToLower(strings.TrimSpace(lang))
	l = strings.NewReplacer("-", "", "_", "").Replace(l)
	switch {
	case l == "en" || strings.HasPrefix(l, "en") && len(l) == 4:
		return book.LangEnglish, nil
	case l == "pt" || l == "ptbr":
		return book.LangPtBR, nil
	}
	return "", fmt.Errorf("unsupported language %q (want en or ptbr)", lang)
}

// ValidateInputs checks what the extraction-only command needs.
func (c *JobConfig) ValidateInputs() error {
	if len(c.Inputs) == 0 {
		return errors.New("no input file given (use -f/--file)")
	}
	for _, in := range c.Inputs {
		st, err := os.Stat(in)
		if err != nil {
			return fmt.Errorf("input %s: %w", in, err)
		}
		if st.IsDir() {
			return fmt.Errorf("input %s is a directory", in)
		}
	}
	lang, err := NormalizeLanguage(c.Language)
	if err != nil {
		return err
	}
	c.Language = lang
	return nil
}

// Validate checks the full summarization job and resolves the API key and
// endpoint of the selected provider.
func (c *JobConfig) Validate() error {
	if err := c.ValidateInputs(); err != nil {
		return err
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case ai.BackendOpenRouter, ai.BackendStackSpot, ai.BackendGemini:
	default:
		return fmt.Errorf("unknown ai provider %q (want openrouter, stackspot or gemini)", c.Provider)
	}
	switch c.DetailLevel {
	case summarize.DetailShort, summarize.DetailMedium, summarize.DetailLong:
	default:
		return fmt.Errorf("unknown detail level %q (want short, medium or long)", c.DetailLevel)
	}
	switch c.OutputFormat {
	case output.FormatMarkdown, output.FormatHTML:
	default:
		return fmt.Errorf("unknown output format %q (want markdown or html)", c.OutputFormat)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Workers < 0 || c.RateLimit < 0 || c.Timeout < 0 {
		return errors.New("workers, rate limit and timeout must not be negative")
	}
	if c.APIKey == "" {
		c.APIKey = c.apiKeys[c.Provider]
	}
	if c.APIKey == "" {
		return fmt.Errorf("missing API key for %s (set API_KEY or the provider-specific key)", c.Provider)
	}
	if c.ProviderURL == "" {
		c.ProviderURL = c.urls[c.Provider]
	}
	return nil
}

// Policy is the retry policy derived from the job settings.
func (c *JobConfig) Policy() summarize.Policy {
	p := summarize.DefaultPolicy()
	p.MaxAttempts = c.MaxAttempts
	if c.Timeout > 0 {
		p.CallTimeout = c.Timeout
	}
	return p
}

// AIConfig selects the provider backend.
func (c *JobConfig) AIConfig() ai.Config {
	return ai.Config{
		Backend:   c.Provider,
		APIKey:    c.APIKey,
		Model:     c.Model,
		URL:       c.ProviderURL,
		Proxy:     c.Proxy,
		Timeout:   c.Timeout,
		RateLimit: c.RateLimit,
	}
}
