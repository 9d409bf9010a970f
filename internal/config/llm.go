// Package config loads the declarative configuration described in
// SPEC_FULL.md §3 and §6: LLMConfig, AdapterConfig, MCP server lists, and the
// ambient dispatcher/compactor tuning knobs, from YAML with ${VAR} expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
)

// Protocol identifies a provider's wire format (§4.3).
type Protocol string

const (
	ProtocolOpenAI    Protocol = "openai"
	ProtocolAnthropic Protocol = "anthropic"
	ProtocolGemini    Protocol = "gemini"
	ProtocolCustom    Protocol = "custom"
)

// ThinkingConfig configures extended-thinking/reasoning token budgets.
type ThinkingConfig struct {
	Enabled      bool `yaml:"enabled"`
	BudgetTokens int  `yaml:"budget_tokens"`
}

// LLMConfig mirrors the spec's LLMConfig entity (§3).
type LLMConfig struct {
	Provider     Protocol        `yaml:"provider"`
	Model        string          `yaml:"model"`
	APIKey       string          `yaml:"api_key"`
	BaseURL      string          `yaml:"base_url"`
	Timeout      int             `yaml:"timeout_seconds"`
	MaxTokens    int             `yaml:"max_tokens"`
	Temperature  *float64        `yaml:"temperature"`
	TopP         *float64        `yaml:"top_p"`
	ContextLimit int             `yaml:"context_limit"`
	Thinking     *ThinkingConfig `yaml:"thinking"`
	Adapter      *AdapterConfig  `yaml:"adapter"`
}

// RequestTemplate drives a custom-HTTP provider's wire request (§4.3).
type RequestTemplate struct {
	Endpoint     string            `yaml:"endpoint"`
	Method       string            `yaml:"method"`
	Headers      map[string]string `yaml:"headers"`
	BodyTemplate map[string]any    `yaml:"body_template"`
}

// ResponseTemplate drives a custom-HTTP provider's wire response parsing.
type ResponseTemplate struct {
	ContentField   string `yaml:"content_field"`
	ToolCallField  string `yaml:"tool_call_field"`
	ToolNamePath   string `yaml:"tool_name_path"`
	ToolArgsPath   string `yaml:"tool_args_path"`
	ToolIDPath     string `yaml:"tool_id_path"`
	ReasoningField string `yaml:"reasoning_field"`
	DoneMarker     string `yaml:"done_marker"`
}

// MessageFormat controls system-prompt and tool-result routing for custom
// providers.
type MessageFormat struct {
	SystemMessageMode   string `yaml:"system_message_mode"` // role|parameter
	SystemParameterName string `yaml:"system_parameter_name"`
	ToolResultRole      string `yaml:"tool_result_role"`
	ToolCallIDField     string `yaml:"tool_call_id_field"`
	WrapToolResult      bool   `yaml:"wrap_tool_result"`
}

// ToolFormat controls how tool definitions are wrapped for custom providers.
type ToolFormat struct {
	WrapMode      string `yaml:"wrap_mode"` // none|function|tool
	WrapField     string `yaml:"wrap_field"`
	ParameterField string `yaml:"parameter_field"`
	IncludeType   bool   `yaml:"include_type"`
}

// AuthConfig describes how a custom provider authenticates.
type AuthConfig struct {
	Type       string `yaml:"type"` // bearer|header|api-key|none
	HeaderName string `yaml:"header_name"`
}

// AdapterConfig is the declarative wire-format description of §4.3/§6.
type AdapterConfig struct {
	ID            string            `yaml:"id"`
	Name          string            `yaml:"name"`
	Protocol      Protocol          `yaml:"protocol"`
	Request       RequestTemplate   `yaml:"request"`
	Response      ResponseTemplate  `yaml:"response"`
	MessageFormat MessageFormat     `yaml:"message_format"`
	ToolFormat    ToolFormat        `yaml:"tool_format"`
	Auth          AuthConfig        `yaml:"auth"`
}

// SetDefaults fills provider/model/temperature/max-tokens defaults from
// environment when unset, matching the teacher's own config convention.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProviderFromEnv()
	}
	if c.Model == "" {
		switch c.Provider {
		case ProtocolAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case ProtocolOpenAI:
			c.Model = "gpt-4o"
		case ProtocolGemini:
			c.Model = "gemini-2.0-flash"
		}
	}
	if c.APIKey == "" {
		c.APIKey = apiKeyFromEnv(c.Provider)
	}
	if c.Temperature == nil {
		t := 0.7
		c.Temperature = &t
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.ContextLimit == 0 {
		c.ContextLimit = 128000
	}
}

// Validate checks the LLM configuration's internal consistency.
func (c *LLMConfig) Validate() error {
	valid := map[Protocol]bool{ProtocolOpenAI: true, ProtocolAnthropic: true, ProtocolGemini: true, ProtocolCustom: true}
	if c.Provider != "" && !valid[c.Provider] {
		return fmt.Errorf("invalid provider %q", c.Provider)
	}
	if c.APIKey == "" && c.Provider != ProtocolCustom {
		return fmt.Errorf("api_key is required for provider %q", c.Provider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Provider == ProtocolCustom && c.Adapter == nil {
		return fmt.Errorf("custom provider requires an adapter config")
	}
	return nil
}

func detectProviderFromEnv() Protocol {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return ProtocolAnthropic
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProtocolOpenAI
	}
	if os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		return ProtocolGemini
	}
	return ProtocolAnthropic
}

func apiKeyFromEnv(p Protocol) string {
	switch p {
	case ProtocolAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProtocolOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProtocolGemini:
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references in s with the environment value,
// leaving unresolved references untouched so a missing var fails loudly
// downstream rather than being silently blanked.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}
