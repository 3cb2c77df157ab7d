package llmtools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arfandy/toolbridge/pkg/router"
)

func sampleDefs() []router.Definition {
	return []router.Definition{
		{
			Name:        "echo",
			Description: "Echoes its input",
			Source:      router.SourceLocal,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{"type": "number"},
				},
				"required": []string{"x"},
			},
		},
		{
			Name:        "demo.ping",
			Description: "Replies with pong",
			Source:      "demo",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
				// Decoded provider schemas carry []interface{}.
				"required": []interface{}{},
			},
		},
		{
			Name:    "dead",
			Source:  "dead",
			Offline: true,
			Error:   "spawn failed",
		},
		{
			Name:        "bare",
			Description: "No declared parameters",
			Source:      router.SourceLocal,
		},
	}
}

func TestAnthropicTools(t *testing.T) {
	tools := AnthropicTools(sampleDefs())
	require.Len(t, tools, 3, "offline markers are not tools")

	first := tools[0].OfTool
	require.NotNil(t, first)
	assert.Equal(t, "echo", first.Name)
	assert.Equal(t, []string{"x"}, first.InputSchema.Required)

	bare := tools[2].OfTool
	require.NotNil(t, bare)
	assert.Equal(t, "bare", bare.Name)
	assert.NotNil(t, bare.InputSchema.Properties, "parameterless tools still get an object schema")
}

func TestOpenAITools(t *testing.T) {
	tools := OpenAITools(sampleDefs())
	require.Len(t, tools, 3)

	assert.Equal(t, "echo", tools[0].Function.Name)
	params := map[string]interface{}(tools[0].Function.Parameters)
	assert.Equal(t, "object", params["type"])

	assert.Equal(t, "demo.ping", tools[1].Function.Name)
}
