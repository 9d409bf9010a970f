package compactor

import (
	"testing"

	"github.com/adnify/agentcore/internal/conversation"
	"github.com/stretchr/testify/assert"
)

func TestScoreTurnAveragesRoleAndToolCallWeightsOverMessageCount(t *testing.T) {
	call := &conversation.ToolCall{ID: "c", Name: "write_file", Arguments: map[string]any{"path": "a.go"}}
	turn := Turn{Messages: []*conversation.Message{
		{Role: conversation.RoleUser},
		{Role: conversation.RoleAssistant, ToolCalls: []*conversation.ToolCall{call}},
	}}
	scoreTurn(&turn)

	// (weightUser=30 + weightAssistantWithTools=25 + bonusWriteCall=35) / 2
	// messages = 45, averaged, then +20 structural write-ops bonus.
	assert.Equal(t, 65, turn.Importance)
	assert.True(t, turn.HasWrite)
}

func TestScoreTurnNormalizesLongTurnsAgainstShortDenseOnes(t *testing.T) {
	call := &conversation.ToolCall{ID: "c", Name: "write_file", Arguments: map[string]any{"path": "a.go"}}
	dense := Turn{Messages: []*conversation.Message{
		{Role: conversation.RoleUser},
		{Role: conversation.RoleAssistant, ToolCalls: []*conversation.ToolCall{call}},
	}}
	scoreTurn(&dense)

	// Same user+write-call pair, but padded with plain tool messages that
	// add little signal each. Before averaging this would outscore dense
	// turns purely by length; after averaging it should not.
	long := Turn{Messages: []*conversation.Message{
		{Role: conversation.RoleUser},
		{Role: conversation.RoleAssistant, ToolCalls: []*conversation.ToolCall{call}},
		{Role: conversation.RoleTool, ToolStatus: conversation.ToolMsgSuccess},
		{Role: conversation.RoleTool, ToolStatus: conversation.ToolMsgSuccess},
		{Role: conversation.RoleTool, ToolStatus: conversation.ToolMsgSuccess},
		{Role: conversation.RoleTool, ToolStatus: conversation.ToolMsgSuccess},
		{Role: conversation.RoleTool, ToolStatus: conversation.ToolMsgSuccess},
	}}
	scoreTurn(&long)

	assert.Less(t, long.Importance, dense.Importance)
}

func TestScoreTurnStructuralBonusesAreNotAveraged(t *testing.T) {
	turn := Turn{Messages: []*conversation.Message{
		{Role: conversation.RoleUser},
		{Role: conversation.RoleTool, ToolStatus: conversation.ToolMsgError},
	}}
	scoreTurn(&turn)

	// (weightUser=30 + weightTool=10 + bonusToolError=40) / 2 = 40,
	// then +30 structural error bonus, applied after averaging.
	assert.Equal(t, 70, turn.Importance)
	assert.True(t, turn.HasError)
}
