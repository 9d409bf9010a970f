// Package tokens implements TokenAccounter (SPEC_FULL.md §4.1): precise
// token counting for budget arithmetic, never authoritative once a provider
// reports real usage.
package tokens

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// PerMessageOverhead is the structural overhead per message (§4.1).
	PerMessageOverhead = 4
	// PerToolCallBaseOverhead is added to the name+arguments token count of
	// every tool-call (§4.1).
	PerToolCallBaseOverhead = 10
	// PerImageTokens is the fixed low-resolution image cost (§4.1).
	PerImageTokens = 85
)

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	cacheMu       sync.RWMutex
)

// Message is the minimal shape TokenAccounter needs to count a message.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCallShape
	ImageCount int
}

// ToolCallShape carries just enough of a ToolCall to count its overhead.
type ToolCallShape struct {
	Name      string
	Arguments map[string]any
}

// Accounter implements count/countMessage/countTotal against a cached BPE
// encoding, falling back to cl100k_base when the model is unrecognized.
type Accounter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

// New returns an Accounter for model, sharing encodings across instances via
// a process-wide cache since constructing one is not free.
func New(model string) (*Accounter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &Accounter{encoding: cached, model: model}, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(EncodingForModel(model))
		if err != nil {
			return nil, fmt.Errorf("resolving tokenizer encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = enc
	cacheMu.Unlock()

	return &Accounter{encoding: enc, model: model}, nil
}

// Count returns the raw token count of text.
func (a *Accounter) Count(text string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.encoding.Encode(text, nil, nil))
}

// CountMessage counts a single message including its structural, tool-call,
// and image overhead (§4.1).
func (a *Accounter) CountMessage(m Message) int {
	total := PerMessageOverhead
	total += a.Count(m.Role)
	total += a.Count(m.Content)
	total += m.ImageCount * PerImageTokens
	for _, tc := range m.ToolCalls {
		total += PerToolCallBaseOverhead
		total += a.Count(tc.Name)
		if args, err := json.Marshal(tc.Arguments); err == nil {
			total += a.Count(string(args))
		}
	}
	return total
}

// CountTotal sums CountMessage over every message in the list.
func (a *Accounter) CountTotal(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += a.CountMessage(m)
	}
	return total
}

// FitWithinLimit returns the suffix of messages (most recent first, then
// reversed back to order) that fits within maxTokens.
func (a *Accounter) FitWithinLimit(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}
	fitted := make([]Message, 0, len(messages))
	current := 0
	for i := len(messages) - 1; i >= 0; i-- {
		mt := a.CountMessage(messages[i])
		if current+mt > maxTokens {
			break
		}
		fitted = append([]Message{messages[i]}, fitted...)
		current += mt
	}
	return fitted
}

func (a *Accounter) Model() string { return a.model }

// EncodingForModel maps a model name to a tiktoken encoding name, matching
// prefixes since vendors version their model strings differently than
// OpenAI's own naming.
func EncodingForModel(model string) string {
	exact := map[string]string{
		"gpt-4":         "cl100k_base",
		"gpt-4-turbo":   "cl100k_base",
		"gpt-4o":        "o200k_base",
		"gpt-4o-mini":   "o200k_base",
		"gpt-3.5-turbo": "cl100k_base",
	}
	if enc, ok := exact[model]; ok {
		return enc
	}
	prefixes := []struct {
		prefix string
		enc    string
	}{
		{"gpt-4o", "o200k_base"},
		{"gpt-4", "cl100k_base"},
		{"gpt-3.5", "cl100k_base"},
		{"claude", "cl100k_base"},
		{"gemini", "cl100k_base"},
	}
	for _, p := range prefixes {
		if len(model) >= len(p.prefix) && model[:len(p.prefix)] == p.prefix {
			return p.enc
		}
	}
	return "cl100k_base"
}
