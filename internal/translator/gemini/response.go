package gemini

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Usage carries the token accounting reported by the API.
type Usage struct {
	PromptTokens    int64
	CandidateTokens int64
	TotalTokens     int64
}

// Response is the subset of a generateContent response the client consumes.
type Response struct {
	// Text is the first part of the first candidate, untouched.
	Text         string
	FinishReason string
	BlockReason  string
	Usage        Usage
	HasUsage     bool
}

// ParseResponse extracts the first candidate text and metadata from a
// generateContent response body.
func ParseResponse(data []byte) (Response, error) {
	if len(data) == 0 || !gjson.ValidBytes(data) {
		return Response{}, fmt.Errorf("gemini translator: response is not valid JSON")
	}
	root := gjson.ParseBytes(data)

	var resp Response
	first := root.Get("candidates.0")
	if first.Exists() {
		resp.Text = first.Get("content.parts.0.text").String()
		resp.FinishReason = first.Get("finishReason").String()
	}
	resp.BlockReason = root.Get("promptFeedback.blockReason").String()

	if usage := root.Get("usageMetadata"); usage.Exists() {
		resp.HasUsage = true
		resp.Usage = Usage{
			PromptTokens:    usage.Get("promptTokenCount").Int(),
			CandidateTokens: usage.Get("candidatesTokenCount").Int(),
			TotalTokens:     usage.Get("totalTokenCount").Int(),
		}
	}
	return resp, nil
}

// ParseErrorMessage returns the human readable message of an API error body.
// Non-JSON bodies are returned trimmed.
func ParseErrorMessage(data []byte) string {
	if gjson.ValidBytes(data) {
		root := gjson.ParseBytes(data)
		msg := strings.TrimSpace(root.Get("error.message").String())
		status := strings.TrimSpace(root.Get("error.status").String())
		switch {
		case msg != "" && status != "":
			return status + ": " + msg
		case msg != "":
			return msg
		case status != "":
			return status
		}
	}
	return strings.TrimSpace(string(data))
}
