package approval_test

import (
	"context"
	"testing"
	"time"

	"github.com/adnify/agentcore/internal/approval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_ApproveResolvesPendingRequest(t *testing.T) {
	g := approval.NewGate()
	done := make(chan approval.Decision, 1)

	go func() {
		d, err := g.Request(context.Background(), approval.Request{ThreadID: "t1", ToolName: "run_command"})
		require.NoError(t, err)
		done <- d
	}()

	require.Eventually(t, func() bool {
		_, ok := g.Pending("t1")
		return ok
	}, time.Second, time.Millisecond)

	g.Approve("t1")
	assert.Equal(t, approval.Approved, <-done)

	_, ok := g.Pending("t1")
	assert.False(t, ok, "approved request should clear from pending")
}

func TestGate_ApproveAndEnableAutoResolvesWithDistinctDecision(t *testing.T) {
	g := approval.NewGate()
	done := make(chan approval.Decision, 1)

	go func() {
		d, err := g.Request(context.Background(), approval.Request{ThreadID: "t1", ToolName: "run_command"})
		require.NoError(t, err)
		done <- d
	}()

	require.Eventually(t, func() bool {
		_, ok := g.Pending("t1")
		return ok
	}, time.Second, time.Millisecond)

	g.ApproveAndEnableAuto("t1")
	assert.Equal(t, approval.ApprovedAndAuto, <-done)
}

func TestGate_RejectBeforeApproveWins(t *testing.T) {
	g := approval.NewGate()
	done := make(chan approval.Decision, 1)

	go func() {
		d, _ := g.Request(context.Background(), approval.Request{ThreadID: "t1", ToolName: "delete_file"})
		done <- d
	}()

	require.Eventually(t, func() bool {
		_, ok := g.Pending("t1")
		return ok
	}, time.Second, time.Millisecond)

	g.Reject("t1")
	g.Approve("t1") // no-op: cycle already resolved

	assert.Equal(t, approval.Rejected, <-done)
}

func TestGate_CancellationResolvesRejectedAndClears(t *testing.T) {
	g := approval.NewGate()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan approval.Decision, 1)
	go func() {
		d, _ := g.Request(ctx, approval.Request{ThreadID: "t1", ToolName: "run_command"})
		done <- d
	}()

	require.Eventually(t, func() bool {
		_, ok := g.Pending("t1")
		return ok
	}, time.Second, time.Millisecond)

	cancel()
	assert.Equal(t, approval.Rejected, <-done)

	// A new request on the same thread must not be blocked by a stale
	// entry left behind by the cancelled one.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err := g.Request(ctx2, approval.Request{ThreadID: "t1", ToolName: "run_command"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_DuplicatePendingRequestRejected(t *testing.T) {
	g := approval.NewGate()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go g.Request(ctx, approval.Request{ThreadID: "t1", ToolName: "a"})
	require.Eventually(t, func() bool {
		_, ok := g.Pending("t1")
		return ok
	}, time.Second, time.Millisecond)

	_, err := g.Request(context.Background(), approval.Request{ThreadID: "t1", ToolName: "b"})
	assert.Error(t, err)
}
