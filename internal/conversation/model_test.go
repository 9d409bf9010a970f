package conversation_test

import (
	"testing"

	"github.com/adnify/agentcore/internal/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetOrCreateIsIdempotent(t *testing.T) {
	store := conversation.NewStore()
	a := store.GetOrCreate("t1")
	b := store.GetOrCreate("t1")
	assert.Same(t, a, b)
}

func TestStoreGetMissingThreadErrors(t *testing.T) {
	store := conversation.NewStore()
	_, err := store.Get("nope")
	assert.Error(t, err)
}

func TestThreadAppendAssignsIDAndTimestamp(t *testing.T) {
	store := conversation.NewStore()
	thread := store.GetOrCreate("t1")

	msg := &conversation.Message{Role: conversation.RoleUser}
	thread.Append(msg)

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestThreadMessagesReturnsSnapshotCopy(t *testing.T) {
	store := conversation.NewStore()
	thread := store.GetOrCreate("t1")
	thread.Append(&conversation.Message{Role: conversation.RoleUser})

	snap := thread.Messages()
	require.Len(t, snap, 1)

	thread.Append(&conversation.Message{Role: conversation.RoleAssistant})
	assert.Len(t, snap, 1, "earlier snapshot must not observe later appends")
	assert.Len(t, thread.Messages(), 2)
}

func TestThreadSetMessagesReplacesList(t *testing.T) {
	store := conversation.NewStore()
	thread := store.GetOrCreate("t1")
	thread.Append(&conversation.Message{Role: conversation.RoleUser})

	replacement := []*conversation.Message{{Role: conversation.RoleSystem}}
	thread.SetMessages(replacement)

	assert.Len(t, thread.Messages(), 1)
	assert.Equal(t, conversation.RoleSystem, thread.Messages()[0].Role)
}

func TestThreadReadBeforeWriteCache(t *testing.T) {
	store := conversation.NewStore()
	thread := store.GetOrCreate("t1")

	assert.False(t, thread.HasRead("a.ts"))
	thread.MarkRead("a.ts")
	assert.True(t, thread.HasRead("a.ts"))
	assert.False(t, thread.HasRead("b.ts"))
}

func TestThreadPlanRoundTrip(t *testing.T) {
	store := conversation.NewStore()
	thread := store.GetOrCreate("t1")

	assert.Nil(t, thread.GetPlan())

	plan := &conversation.Plan{Items: []*conversation.PlanItem{{ID: "1", Title: "step"}}}
	thread.SetPlan(plan)
	assert.Same(t, plan, thread.GetPlan())
}

func TestThreadLatestCheckpointReturnsMostRecent(t *testing.T) {
	store := conversation.NewStore()
	thread := store.GetOrCreate("t1")

	assert.Nil(t, thread.LatestCheckpoint())

	first := &conversation.Message{Role: conversation.RoleCheckpoint, Snapshots: map[string]conversation.FileSnapshot{"a.ts": {}}}
	thread.Append(first)
	thread.Append(&conversation.Message{Role: conversation.RoleUser})

	second := &conversation.Message{Role: conversation.RoleCheckpoint, Snapshots: map[string]conversation.FileSnapshot{"b.ts": {}}}
	thread.Append(second)
	thread.Append(&conversation.Message{Role: conversation.RoleAssistant})

	got := thread.LatestCheckpoint()
	require.NotNil(t, got)
	assert.Same(t, second, got)
}

func TestFinalizeClearsIsStreaming(t *testing.T) {
	msg := &conversation.Message{Role: conversation.RoleAssistant, IsStreaming: true}
	conversation.Finalize(msg)
	assert.False(t, msg.IsStreaming)
}
