package builtin

import "context"

// SessionCache is the minimal read-before-write tracking surface a Thread
// provides (conversation.Thread satisfies this without builtin importing
// the conversation package, avoiding an import cycle).
type SessionCache interface {
	MarkRead(path string)
	HasRead(path string) bool
}

type sessionKey struct{}

// WithSession attaches a SessionCache to ctx for the duration of one tool
// dispatch (§4.5's "read-before-write invariant").
func WithSession(ctx context.Context, s SessionCache) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) SessionCache {
	s, _ := ctx.Value(sessionKey{}).(SessionCache)
	return s
}

// PlanStore is the minimal plan read/write surface create_plan and
// update_plan need (conversation.Thread satisfies this structurally, same
// rationale as SessionCache above).
type PlanStore interface {
	SetPlan(items []PlanItem)
	GetPlan() (items []PlanItem, status string)
}

// PlanItem mirrors conversation.PlanItem's shape so builtin need not import
// the conversation package.
type PlanItem struct {
	ID          string
	Title       string
	Status      string
	Description string
}

type planKey struct{}

// WithPlanStore attaches a PlanStore to ctx for plan-mode tool dispatch.
func WithPlanStore(ctx context.Context, p PlanStore) context.Context {
	return context.WithValue(ctx, planKey{}, p)
}

func planStoreFrom(ctx context.Context) PlanStore {
	p, _ := ctx.Value(planKey{}).(PlanStore)
	return p
}
