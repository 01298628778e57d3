package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestPartsText(t *testing.T) {
	parts := []genai.Part{genai.Text("HEADLINE: Town rebuilds\n"), genai.Text("SUMMARY: Neighbours help.")}
	assert.Equal(t, "HEADLINE: Town rebuilds\nSUMMARY: Neighbours help.", partsText(parts))
}
