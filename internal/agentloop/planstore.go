package agentloop

import (
	"github.com/adnify/agentcore/internal/conversation"
	"github.com/adnify/agentcore/internal/tool/builtin"
)

// threadPlanStore adapts a *conversation.Thread's Plan/PlanItem shape to
// builtin.PlanStore, which intentionally mirrors conversation.Plan's fields
// rather than importing the conversation package (avoiding an import cycle,
// since conversation is lower in the dependency graph than tool/builtin).
// The two structs are translated field-by-field here since Go has no
// structural subtyping for concrete types, only interfaces.
type threadPlanStore struct {
	thread *conversation.Thread
}

// NewPlanStore wraps thread so it satisfies builtin.PlanStore, for use with
// builtin.WithPlanStore when dispatching create_plan/update_plan calls.
func NewPlanStore(thread *conversation.Thread) builtin.PlanStore {
	return &threadPlanStore{thread: thread}
}

func (s *threadPlanStore) SetPlan(items []builtin.PlanItem) {
	plan := s.thread.GetPlan()
	status := ""
	if plan != nil {
		status = plan.Status
	}
	converted := make([]*conversation.PlanItem, 0, len(items))
	for _, it := range items {
		converted = append(converted, &conversation.PlanItem{
			ID:          it.ID,
			Title:       it.Title,
			Status:      it.Status,
			Description: it.Description,
		})
	}
	s.thread.SetPlan(&conversation.Plan{Items: converted, Status: status})
}

func (s *threadPlanStore) GetPlan() ([]builtin.PlanItem, string) {
	plan := s.thread.GetPlan()
	if plan == nil {
		return nil, ""
	}
	out := make([]builtin.PlanItem, 0, len(plan.Items))
	for _, it := range plan.Items {
		out = append(out, builtin.PlanItem{
			ID:          it.ID,
			Title:       it.Title,
			Status:      it.Status,
			Description: it.Description,
		})
	}
	return out, plan.Status
}
