// Package conversation implements the ConversationStore data model
// (SPEC_FULL.md §3, §2.14): Threads of Messages with ToolCalls and
// Checkpoints. Structural only — persistence is external.
package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role tags which Message variant a message is.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleTool       Role = "tool"
	RoleCheckpoint Role = "checkpoint"
)

// ToolCallStatus tracks a ToolCall through the dispatcher (§4.8).
type ToolCallStatus string

const (
	ToolPending  ToolCallStatus = "pending"
	ToolAwaiting ToolCallStatus = "awaiting"
	ToolRunning  ToolCallStatus = "running"
	ToolSuccess  ToolCallStatus = "success"
	ToolError    ToolCallStatus = "error"
	ToolRejected ToolCallStatus = "rejected"
)

// ToolMessageStatus is the terminal status recorded on a Tool message.
type ToolMessageStatus string

const (
	ToolMsgSuccess  ToolMessageStatus = "success"
	ToolMsgError    ToolMessageStatus = "tool_error"
	ToolMsgRejected ToolMessageStatus = "rejected"
)

// ToolCall is the spec's ToolCall entity (§3).
type ToolCall struct {
	ID          string
	Name        string
	Arguments   map[string]any
	Status      ToolCallStatus
	Result      string
	Error       string
	RichContent any

	// WaitingForUser and Interactive carry the dispatcher's §4.8 "Interactive
	// tools" signal through to AgentLoop, which halts the iteration loop
	// when set rather than continuing to the next LLM call.
	WaitingForUser bool
	Interactive    any
}

// ImagePart is a typed user-content part carrying an inline image.
type ImagePart struct {
	MimeType string
	Base64   string
}

// ContentPart is either text or an image; User.Content is a sequence of
// these (§3).
type ContentPart struct {
	Text  string
	Image *ImagePart
}

// TokenUsage mirrors §3; Trusted is false when TokenAccounter estimated it.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	Trusted      bool
}

// FileSnapshot is either the previous content of a file, or nil-for-created
// meaning the file did not exist before the turn.
type FileSnapshot struct {
	PreviousContent *string
}

// Message is the tagged variant described in §3. Only the fields relevant
// to Role are populated.
type Message struct {
	ID        string
	Role      Role
	CreatedAt time.Time

	// User
	Content []ContentPart

	// Assistant
	Text         string
	ToolCalls    []*ToolCall
	Reasoning    string
	Usage        *TokenUsage
	IsStreaming  bool
	CompactedAt  *time.Time

	// Tool
	ToolCallID string
	ToolName   string
	ToolText   string
	ToolStatus ToolMessageStatus

	// Checkpoint
	Snapshots map[string]FileSnapshot
}

// PlanItem is one row of a Plan (§3).
type PlanItem struct {
	ID          string
	Title       string
	Status      string // pending|in_progress|completed|failed|skipped
	Description string
}

// Plan is the in-memory structure the core operates on; persistence as
// markdown is host-managed (§6).
type Plan struct {
	Items  []*PlanItem
	Status string
}

// Thread is an ordered log of Messages plus live state (§3).
type Thread struct {
	ID                string
	mu                sync.RWMutex
	messages          []*Message
	Plan              *Plan
	CompactionLevel   int
	NeedsHandoff      bool
	readFiles         map[string]bool // read-before-write session cache (§4.5)
}

func newThread(id string) *Thread {
	return &Thread{ID: id, readFiles: map[string]bool{}}
}

// Append adds msg to the thread under lock, preserving happens-before order.
func (t *Thread) Append(msg *Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	t.messages = append(t.messages, msg)
}

// Messages returns a snapshot copy of the message list.
func (t *Thread) Messages() []*Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// SetMessages atomically replaces the message list (used by the compactor's
// L4 handoff rewrite, §4.9).
func (t *Thread) SetMessages(msgs []*Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = msgs
}

// MarkRead records path as read-before-write eligible for this session.
func (t *Thread) MarkRead(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readFiles[path] = true
}

// HasRead reports whether path was previously read in this thread's session.
func (t *Thread) HasRead(path string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.readFiles[path]
}

// SetPlan installs or replaces the thread's active plan.
func (t *Thread) SetPlan(p *Plan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Plan = p
}

// GetPlan returns the thread's active plan, or nil if none exists.
func (t *Thread) GetPlan() *Plan {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Plan
}

// LatestCheckpoint returns the most recently appended Checkpoint message, or
// nil if none exists yet.
func (t *Thread) LatestCheckpoint() *Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleCheckpoint {
			return t.messages[i]
		}
	}
	return nil
}

// Store owns Threads for their lifetime (§2.14, §3 "Lifecycle & ownership").
type Store struct {
	mu      sync.RWMutex
	threads map[string]*Thread
}

func NewStore() *Store {
	return &Store{threads: map[string]*Thread{}}
}

// GetOrCreate returns the Thread for id, creating it if absent.
func (s *Store) GetOrCreate(id string) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[id]; ok {
		return t
	}
	t := newThread(id)
	s.threads[id] = t
	return t
}

// Get returns the Thread for id, or an error if it has not been created.
func (s *Store) Get(id string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return nil, fmt.Errorf("thread %q not found", id)
	}
	return t, nil
}

// Finalize marks an assistant message no longer streaming; invariant #1 of
// §8 (no further stream events may mutate it after this).
func Finalize(msg *Message) {
	msg.IsStreaming = false
}
