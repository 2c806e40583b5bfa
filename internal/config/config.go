// Package config loads the engine configuration from JSON or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/mnemo/internal/guard"
	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/provider"
	"github.com/felixgeelhaar/mnemo/internal/retry"
)

// Duration is a time.Duration written as a string such as "6h" or "500ms".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"6h\": %w", err)
	}
	return d.set(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"6h\": %w", err)
	}
	return d.set(s)
}

func (d *Duration) set(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Retrieval struct {
	SemanticFloor float64  `json:"semantic_floor" yaml:"semantic_floor"`
	MinScore      float64  `json:"min_score" yaml:"min_score"`
	TopK          int      `json:"top_k" yaml:"top_k"`
	HalfLife      Duration `json:"half_life" yaml:"half_life"`
}

type Dialogue struct {
	MaxTurns       int `json:"max_turns" yaml:"max_turns"`
	SummarizeBatch int `json:"summarize_batch" yaml:"summarize_batch"`
}

type Retry struct {
	MaxAttempts  int      `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     Duration `json:"max_delay" yaml:"max_delay"`
}

type Guard struct {
	MaxInputChars int      `json:"max_input_chars" yaml:"max_input_chars"`
	AllowedUsers  []string `json:"allowed_users" yaml:"allowed_users"`
}

// Matrix configures the optional room bridge. The access token lives in
// the credential store under "matrix.api_key".
type Matrix struct {
	Homeserver string   `json:"homeserver,omitempty" yaml:"homeserver,omitempty"`
	UserID     string   `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Rooms      []string `json:"rooms,omitempty" yaml:"rooms,omitempty"`
}

// Config is the full engine configuration.
type Config struct {
	Provider   string   `json:"provider" yaml:"provider"`
	Model      string   `json:"model,omitempty" yaml:"model,omitempty"`
	EmbedModel string   `json:"embed_model,omitempty" yaml:"embed_model,omitempty"`
	BaseURL    string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	CLIPath    string   `json:"cli_path,omitempty" yaml:"cli_path,omitempty"`
	CLIArgs    []string `json:"cli_args,omitempty" yaml:"cli_args,omitempty"`
	Persona    string   `json:"persona,omitempty" yaml:"persona,omitempty"`
	Listen     string   `json:"listen" yaml:"listen"`

	Retrieval Retrieval `json:"retrieval" yaml:"retrieval"`
	Dialogue  Dialogue  `json:"dialogue" yaml:"dialogue"`
	Retry     Retry     `json:"retry" yaml:"retry"`
	Guard     Guard     `json:"guard" yaml:"guard"`
	Matrix    Matrix    `json:"matrix,omitzero" yaml:"matrix,omitempty"`
}

// Default returns the stock configuration.
func Default() *Config {
	ret := memory.DefaultOptions()
	return &Config{
		Provider: "stub",
		Listen:   "127.0.0.1:8080",
		Retrieval: Retrieval{
			SemanticFloor: ret.SemanticFloor,
			MinScore:      ret.MinScore,
			TopK:          ret.TopK,
			HalfLife:      Duration(ret.HalfLife),
		},
		Dialogue: Dialogue{MaxTurns: 16, SummarizeBatch: 8},
		Retry: Retry{
			MaxAttempts:  retry.DefaultConfig.MaxAttempts,
			InitialDelay: Duration(retry.DefaultConfig.InitialDelay),
			MaxDelay:     Duration(retry.DefaultConfig.MaxDelay),
		},
		Guard: Guard{
			MaxInputChars: guard.DefaultPolicy.MaxInputChars,
			AllowedUsers:  append([]string(nil), guard.DefaultPolicy.AllowedUsers...),
		},
	}
}

// Load reads a configuration file (JSON or YAML). Fields the file omits keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s (use .json or .yaml)", ext)
	}

	return cfg, nil
}

// Save writes the configuration in the format implied by the extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return fmt.Errorf("unsupported config format: %s (use .json or .yaml)", ext)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ValidationResult represents the outcome of a validation pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}
	fail := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(format, args...))
	}

	known := false
	for _, n := range provider.Names() {
		if strings.EqualFold(n, c.Provider) {
			known = true
		}
	}
	if !known {
		fail("Unknown provider %q (want one of %s)", c.Provider, strings.Join(provider.Names(), ", "))
	}
	if strings.EqualFold(c.Provider, "cli") && c.CLIPath == "" {
		fail("cli_path is required for the cli provider")
	}
	if strings.EqualFold(c.Provider, "stub") {
		warn("Using the stub provider; replies are canned")
	}
	if strings.TrimSpace(c.Persona) == "" {
		warn("No persona set; using the default")
	}

	r := c.Retrieval
	if r.SemanticFloor < -1 || r.SemanticFloor > 1 {
		fail("retrieval.semantic_floor must be within [-1, 1], got %v", r.SemanticFloor)
	}
	if r.MinScore < 0 {
		warn("retrieval.min_score is negative; every candidate will pass")
	}
	if r.TopK < 1 {
		fail("retrieval.top_k must be at least 1, got %d", r.TopK)
	}
	if r.HalfLife <= 0 {
		fail("retrieval.half_life must be positive, got %s", r.HalfLife)
	}

	d := c.Dialogue
	if d.MaxTurns < 2 {
		fail("dialogue.max_turns must be at least 2, got %d", d.MaxTurns)
	}
	if d.SummarizeBatch < 1 || d.SummarizeBatch > d.MaxTurns {
		fail("dialogue.summarize_batch must be within [1, max_turns], got %d", d.SummarizeBatch)
	}

	rt := c.Retry
	if rt.MaxAttempts < 1 {
		fail("retry.max_attempts must be at least 1, got %d", rt.MaxAttempts)
	}
	if rt.InitialDelay > rt.MaxDelay {
		warn("retry.initial_delay exceeds retry.max_delay; every wait will be capped")
	}

	if c.Guard.MaxInputChars <= 0 {
		warn("guard.max_input_chars is unset; input length is unlimited")
	}
	if err := guard.ValidatePatterns(c.Guard.AllowedUsers); err != nil {
		fail("guard.allowed_users: %v", err)
	}

	if m := c.Matrix; m.Homeserver != "" && m.UserID == "" {
		fail("matrix.user_id is required when matrix.homeserver is set")
	}

	return res
}

// RetrievalOptions converts the retrieval section.
func (c *Config) RetrievalOptions() memory.Options {
	return memory.Options{
		SemanticFloor: c.Retrieval.SemanticFloor,
		MinScore:      c.Retrieval.MinScore,
		TopK:          c.Retrieval.TopK,
		HalfLife:      c.Retrieval.HalfLife.Std(),
	}
}

// RetryConfig converts the retry section.
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: c.Retry.InitialDelay.Std(),
		MaxDelay:     c.Retry.MaxDelay.Std(),
	}
}

// GuardPolicy converts the guard section.
func (c *Config) GuardPolicy() guard.Policy {
	return guard.Policy{
		MaxInputChars: c.Guard.MaxInputChars,
		AllowedUsers:  append([]string(nil), c.Guard.AllowedUsers...),
	}
}

// ProviderSettings converts the backend fields. The API key comes from the
// credential store, not the file.
func (c *Config) ProviderSettings(apiKey string) provider.Settings {
	return provider.Settings{
		Name:       c.Provider,
		APIKey:     apiKey,
		BaseURL:    c.BaseURL,
		Model:      c.Model,
		EmbedModel: c.EmbedModel,
		CLIPath:    c.CLIPath,
		CLIArgs:    c.CLIArgs,
	}
}
