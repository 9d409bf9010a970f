package tokens_test

import (
	"testing"

	"github.com/adnify/agentcore/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountDeterministicASCII(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)

	a := acc.Count("The quick brown fox jumps over the lazy dog.")
	b := acc.Count("The quick brown fox jumps over the lazy dog.")
	assert.Equal(t, a, b)
	assert.Greater(t, a, 0)
}

func TestCountEmptyText(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 0, acc.Count(""))
}

func TestCountMessageOverhead(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)

	bare := tokens.Message{Role: "user", Content: ""}
	bareCount := acc.CountMessage(bare)
	assert.Equal(t, tokens.PerMessageOverhead+acc.Count("user"), bareCount)

	withText := tokens.Message{Role: "user", Content: "hello"}
	assert.Greater(t, acc.CountMessage(withText), bareCount)
}

func TestCountMessageToolCallOverhead(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)

	withoutTool := tokens.Message{Role: "assistant"}
	withTool := tokens.Message{
		Role: "assistant",
		ToolCalls: []tokens.ToolCallShape{
			{Name: "read_file", Arguments: map[string]any{"path": "a.ts"}},
		},
	}
	delta := acc.CountMessage(withTool) - acc.CountMessage(withoutTool)
	assert.GreaterOrEqual(t, delta, tokens.PerToolCallBaseOverhead)
}

func TestCountMessageImageOverhead(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)

	one := acc.CountMessage(tokens.Message{Role: "user", ImageCount: 1})
	two := acc.CountMessage(tokens.Message{Role: "user", ImageCount: 2})
	assert.Equal(t, tokens.PerImageTokens, two-one)
}

func TestCountTotalSumsMessages(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)

	msgs := []tokens.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hello there"},
	}
	sum := acc.CountMessage(msgs[0]) + acc.CountMessage(msgs[1])
	assert.Equal(t, sum, acc.CountTotal(msgs))
}

func TestCountTotalEmpty(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 0, acc.CountTotal(nil))
}

func TestFitWithinLimitKeepsMostRecentSuffix(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)

	msgs := []tokens.Message{
		{Role: "user", Content: "first message, somewhat long so it costs tokens"},
		{Role: "assistant", Content: "second message"},
		{Role: "user", Content: "third message"},
	}
	last := acc.CountMessage(msgs[2])
	fitted := acc.FitWithinLimit(msgs, last+1)
	require.Len(t, fitted, 1)
	assert.Equal(t, msgs[2].Content, fitted[0].Content)
}

func TestFitWithinLimitEmptyInput(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)
	assert.Empty(t, acc.FitWithinLimit(nil, 100))
}

func TestFitWithinLimitEverythingFits(t *testing.T) {
	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)

	msgs := []tokens.Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
	}
	fitted := acc.FitWithinLimit(msgs, 10_000)
	assert.Equal(t, msgs, fitted)
}

func TestEncodingForModelKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "o200k_base", tokens.EncodingForModel("gpt-4o"))
	assert.Equal(t, "cl100k_base", tokens.EncodingForModel("gpt-4"))
	assert.Equal(t, "cl100k_base", tokens.EncodingForModel("claude-3-opus"))
	assert.Equal(t, "cl100k_base", tokens.EncodingForModel("totally-unknown-model"))
}

func TestModelReturnsConstructorArgument(t *testing.T) {
	acc, err := tokens.New("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", acc.Model())
}
