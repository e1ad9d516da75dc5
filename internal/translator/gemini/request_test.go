package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildRequestShape(t *testing.T) {
	t.Parallel()
	body, err := BuildRequest("Say \"hi\"\nplease", DefaultGenerationConfig())
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(body))

	root := gjson.ParseBytes(body)
	assert.Equal(t, "Say \"hi\"\nplease", root.Get("contents.0.parts.0.text").String())
	assert.Len(t, root.Get("contents").Array(), 1)
	assert.InDelta(t, 0.7, root.Get("generationConfig.temperature").Float(), 1e-9)
	assert.Equal(t, int64(300), root.Get("generationConfig.maxOutputTokens").Int())
	assert.Equal(t, int64(40), root.Get("generationConfig.topK").Int())
	assert.InDelta(t, 0.95, root.Get("generationConfig.topP").Float(), 1e-9)
}
