package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/adnify/agentcore/internal/observability"
)

// MCPServerConfig describes one MCP server declaration (§6). Exactly one of
// Command (local/stdio) or URL (remote/HTTP) must be set.
type MCPServerConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Disabled    bool              `yaml:"disabled"`
	TimeoutSec  int               `yaml:"timeout_seconds"`
	AutoApprove []string          `yaml:"auto_approve"`

	// Local/stdio
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
	Cwd     string            `yaml:"cwd"`

	// Remote/HTTP
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	OAuth   *OAuthConfig      `yaml:"oauth"`
}

// OAuthConfig enables MCP remote-auth dynamic client registration (§4.6).
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

func (c MCPServerConfig) IsLocal() bool { return c.Command != "" }

// DispatcherConfig tunes the ToolDispatcher parallel pool (§4.8).
type DispatcherConfig struct {
	MinConcurrency     int     `yaml:"min_concurrency"`
	MaxConcurrency     int     `yaml:"max_concurrency"`
	CPUMultiplier      float64 `yaml:"cpu_multiplier"`
	MaxToolResultChars int     `yaml:"max_tool_result_chars"`

	// ToolDependencies lists, per tool name, the other tool names that must
	// complete before it may run within the same iteration (§4.8 step 2's
	// explicit edges). Most tools have no entry.
	ToolDependencies map[string][]string `yaml:"tool_dependencies"`

	// ToolResultCharLimits overrides MaxToolResultChars per tool name (§4.8
	// step 6's "tool-specific default from a lookup").
	ToolResultCharLimits map[string]int `yaml:"tool_result_char_limits"`
}

func (d *DispatcherConfig) SetDefaults() {
	if d.MinConcurrency == 0 {
		d.MinConcurrency = 2
	}
	if d.MaxConcurrency == 0 {
		d.MaxConcurrency = 16
	}
	if d.CPUMultiplier == 0 {
		d.CPUMultiplier = 2.0
	}
	if d.MaxToolResultChars == 0 {
		d.MaxToolResultChars = 8000
	}
}

// CompactorConfig tunes ContextCompactor's ladder thresholds and sliding
// window sizes (§4.9). The Open Question in SPEC_FULL.md §9 about "important
// old turn" counts differing across levels is resolved by making them
// configurable here, with the spec's own numbers as defaults.
type CompactorConfig struct {
	L1Ratio          float64 `yaml:"l1_ratio"`
	L2Ratio          float64 `yaml:"l2_ratio"`
	L3Ratio          float64 `yaml:"l3_ratio"`
	L4Ratio          float64 `yaml:"l4_ratio"`
	L2RecentTurns    int     `yaml:"l2_recent_turns"`
	L2ImportantTurns int     `yaml:"l2_important_turns"`
	L3RecentTurns    int     `yaml:"l3_recent_turns"`
	AutoHandoff      bool    `yaml:"auto_handoff"`
	DetailedSummary  bool    `yaml:"detailed_summary"`
}

func (c *CompactorConfig) SetDefaults() {
	if c.L1Ratio == 0 {
		c.L1Ratio = 0.50
	}
	if c.L2Ratio == 0 {
		c.L2Ratio = 0.70
	}
	if c.L3Ratio == 0 {
		c.L3Ratio = 0.85
	}
	if c.L4Ratio == 0 {
		c.L4Ratio = 0.95
	}
	if c.L2RecentTurns == 0 {
		c.L2RecentTurns = 6
	}
	if c.L2ImportantTurns == 0 {
		c.L2ImportantTurns = 5
	}
	if c.L3RecentTurns == 0 {
		c.L3RecentTurns = 2
	}
}

// AgentLoopConfig tunes AgentLoop (§4.11).
type AgentLoopConfig struct {
	MaxToolLoops  int  `yaml:"max_tool_loops"`
	EnableAutoFix bool `yaml:"enable_auto_fix"`
}

func (c *AgentLoopConfig) SetDefaults() {
	if c.MaxToolLoops == 0 {
		c.MaxToolLoops = 25
	}
}

// Config is the top-level configuration tree.
type Config struct {
	LogLevel   string             `yaml:"log_level"`
	LLM        LLMConfig          `yaml:"llm"`
	MCPServers []MCPServerConfig  `yaml:"mcp_servers"`
	Dispatcher DispatcherConfig   `yaml:"dispatcher"`
	Compactor  CompactorConfig    `yaml:"compactor"`
	AgentLoop  AgentLoopConfig    `yaml:"agent_loop"`
	Workspace  string             `yaml:"workspace"`

	Tracing observability.TracingConfig `yaml:"tracing"`
	Metrics observability.MetricsConfig `yaml:"metrics"`
}

func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	c.LLM.SetDefaults()
	c.Dispatcher.SetDefaults()
	c.Compactor.SetDefaults()
	c.AgentLoop.SetDefaults()
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}
	for i, s := range c.MCPServers {
		if s.Command == "" && s.URL == "" {
			return fmt.Errorf("mcp server[%d] %q: requires command or url", i, s.ID)
		}
		if s.Command != "" && s.URL != "" {
			return fmt.Errorf("mcp server[%d] %q: set either command or url, not both", i, s.ID)
		}
	}
	return nil
}

// Load reads a YAML config file, expanding ${VAR} references against the
// process environment (after loading any .env file in the current working
// directory), and
// applies defaults + validation.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is not an error

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	expanded := ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
