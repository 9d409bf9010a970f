package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/adnify/agentcore/internal/tool"
)

// CreatePlanTool replaces the thread's plan wholesale, used when entering
// plan mode or revising a plan from scratch (§4.11).
type CreatePlanTool struct{}

func (t *CreatePlanTool) Name() string        { return "create_plan" }
func (t *CreatePlanTool) Description() string { return "Create (or replace) the task plan with an ordered list of items." }
func (t *CreatePlanTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *CreatePlanTool) Category() tool.Category         { return tool.CategoryPlan }
func (t *CreatePlanTool) ParallelSafe() bool              { return false }

func (t *CreatePlanTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
					},
					"required": []string{"title"},
				},
			},
		},
		"required": []string{"items"},
	}
}

func (t *CreatePlanTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	store := planStoreFrom(ctx)
	if store == nil {
		return nil, fmt.Errorf("create_plan: no plan store attached to context")
	}
	raw, _ := args["items"].([]any)
	items := make([]PlanItem, 0, len(raw))
	for i, v := range raw {
		m, _ := v.(map[string]any)
		title, _ := m["title"].(string)
		desc, _ := m["description"].(string)
		items = append(items, PlanItem{
			ID:          fmt.Sprintf("item-%d", i+1),
			Title:       title,
			Description: desc,
			Status:      "pending",
		})
	}
	store.SetPlan(items)
	return &tool.Result{Content: formatPlan(items)}, nil
}

// UpdatePlanTool sets the status of one existing plan item by ID; title and
// description are left unchanged.
type UpdatePlanTool struct{}

func (t *UpdatePlanTool) Name() string        { return "update_plan" }
func (t *UpdatePlanTool) Description() string { return "Update the status of one plan item." }
func (t *UpdatePlanTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *UpdatePlanTool) Category() tool.Category         { return tool.CategoryPlan }
func (t *UpdatePlanTool) ParallelSafe() bool              { return false }

func (t *UpdatePlanTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":     map[string]any{"type": "string"},
			"status": map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed", "failed", "skipped"}},
		},
		"required": []string{"id", "status"},
	}
}

func (t *UpdatePlanTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	store := planStoreFrom(ctx)
	if store == nil {
		return nil, fmt.Errorf("update_plan: no plan store attached to context")
	}
	id, _ := args["id"].(string)
	status, _ := args["status"].(string)

	items, _ := store.GetPlan()
	found := false
	for i := range items {
		if items[i].ID == id {
			items[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("update_plan: no plan item with id %q", id)
	}
	store.SetPlan(items)
	return &tool.Result{Content: formatPlan(items)}, nil
}

func formatPlan(items []PlanItem) string {
	if len(items) == 0 {
		return "plan is empty"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "[%s] %s: %s\n", it.Status, it.ID, it.Title)
	}
	return b.String()
}
