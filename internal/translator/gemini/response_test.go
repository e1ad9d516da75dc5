package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponseFirstCandidate(t *testing.T) {
	t.Parallel()
	body := []byte(`{
		"candidates": [
			{"content": {"parts": [{"text": "first"}, {"text": "second"}], "role": "model"}, "finishReason": "STOP"},
			{"content": {"parts": [{"text": "other"}]}}
		],
		"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3, "totalTokenCount": 15}
	}`)
	resp, err := ParseResponse(body)
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	require.True(t, resp.HasUsage)
	assert.Equal(t, Usage{PromptTokens: 12, CandidateTokens: 3, TotalTokens: 15}, resp.Usage)
}

func TestParseResponseWithoutCandidates(t *testing.T) {
	t.Parallel()
	resp, err := ParseResponse([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
	assert.Equal(t, "SAFETY", resp.BlockReason)
	assert.False(t, resp.HasUsage)
}

func TestParseResponseInvalid(t *testing.T) {
	t.Parallel()
	_, err := ParseResponse([]byte("not json"))
	require.Error(t, err)
	_, err = ParseResponse(nil)
	require.Error(t, err)
}

func TestParseErrorMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "RESOURCE_EXHAUSTED: Quota exceeded", ParseErrorMessage([]byte(`{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)))
	assert.Equal(t, "API key not valid", ParseErrorMessage([]byte(`{"error":{"message":"API key not valid"}}`)))
	assert.Equal(t, "upstream busy", ParseErrorMessage([]byte(" upstream busy \n")))
}
