// Package provider implements the four wire protocols the core speaks to
// LLM backends — OpenAI, Anthropic, Gemini, and a declarative custom-HTTP
// adapter — each emitting a normalized internal/streamevent.Event stream
// (SPEC_FULL.md §4.3). All four share error classification and a retrying
// HTTP client, grounded on the teacher's pkg/llms/{openai,anthropic,gemini}.go
// and pkg/httpclient.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/adnify/agentcore/internal/adapter"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/adnify/agentcore/internal/tool"
)

// Timeouts per §4.3.
const (
	StreamFirstByteTimeout = 30 * time.Second
	StreamTotalTimeout     = 5 * time.Minute
	NonStreamTotalTimeout  = 2 * time.Minute
)

// Request carries everything a provider needs to make one chat call. Messages
// are already adapter.ConvertMessages-shaped (system routing applied);
// SystemPrompt is carried alongside for protocols (Anthropic, Gemini) whose
// wire format puts it in a top-level field rather than the message list.
type Request struct {
	Model              string
	Messages           []adapter.WireMessage
	Tools              []tool.Tool
	SystemPrompt       string
	MaxTokens          int
	Temperature        *float64
	TopP               *float64
	Stream             bool
	CancellationHandle context.CancelFunc
}

// Provider is the contract every wire-protocol implementation satisfies.
type Provider interface {
	Chat(ctx context.Context, req Request) (<-chan streamevent.Event, error)
}

// ErrorKind classifies provider failures for retry and messaging purposes
// (§4.3's error classification table).
type ErrorKind string

const (
	ErrNetwork             ErrorKind = "NETWORK_ERROR"
	ErrTimeout             ErrorKind = "TIMEOUT"
	ErrAborted             ErrorKind = "ABORTED"
	ErrInvalidAPIKey       ErrorKind = "INVALID_API_KEY"
	ErrRateLimit           ErrorKind = "RATE_LIMIT"
	ErrQuotaExceeded       ErrorKind = "QUOTA_EXCEEDED"
	ErrModelNotFound       ErrorKind = "MODEL_NOT_FOUND"
	ErrContextLengthExceed ErrorKind = "CONTEXT_LENGTH_EXCEEDED"
	ErrInvalidRequest      ErrorKind = "INVALID_REQUEST"
	ErrServer              ErrorKind = "SERVER_ERROR"
	ErrUnknown             ErrorKind = "UNKNOWN"
)

var retryableKinds = map[ErrorKind]bool{
	ErrNetwork:   true,
	ErrTimeout:   true,
	ErrRateLimit: true,
	ErrServer:    true,
}

// ClassifyHTTPError maps an HTTP status code and response body to an
// ErrorKind per §4.3's table.
func ClassifyHTTPError(status int, body string) ErrorKind {
	switch status {
	case 401:
		return ErrInvalidAPIKey
	case 402, 403:
		return ErrQuotaExceeded
	case 404:
		return ErrModelNotFound
	case 429:
		return ErrRateLimit
	case 500, 502, 503:
		return ErrServer
	case 400:
		lower := strings.ToLower(body)
		if strings.Contains(lower, "context") || strings.Contains(lower, "token") {
			return ErrContextLengthExceed
		}
		return ErrInvalidRequest
	default:
		return ErrUnknown
	}
}

// Retryable reports whether an ErrorKind is worth retrying.
func Retryable(k ErrorKind) bool { return retryableKinds[k] }

// ProviderError wraps a classified provider failure.
type ProviderError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *ProviderError) Error() string { return string(e.Kind) + ": " + e.Message }

// ForProtocol returns the Provider for a protocol, backed by shared
// httpclient retry/backoff configuration.
func ForProtocol(protocol config.Protocol, cfg *config.LLMConfig) Provider {
	switch protocol {
	case config.ProtocolOpenAI:
		return NewOpenAI(cfg)
	case config.ProtocolAnthropic:
		return NewAnthropic(cfg)
	case config.ProtocolGemini:
		return NewGemini(cfg)
	default:
		return NewCustom(cfg)
	}
}
