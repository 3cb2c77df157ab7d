// Package llmtools converts the router's merged tool definitions into
// the tool parameter shapes the LLM SDKs expect, so the agent layer can
// hand the full catalog to a model in one call.
package llmtools

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"

	"github.com/arfandy/toolbridge/pkg/router"
)

// AnthropicTools converts definitions to Anthropic tool params. Offline
// provider markers are skipped; they are not invocable tools.
func AnthropicTools(defs []router.Definition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		if def.Offline {
			continue
		}
		schema := inputSchema(def)

		toolParam := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
			},
		}
		// Local schemas carry []string, decoded provider schemas carry
		// []interface{}.
		switch req := schema["required"].(type) {
		case []string:
			toolParam.InputSchema.Required = req
		case []interface{}:
			required := make([]string, 0, len(req))
			for _, v := range req {
				if s, ok := v.(string); ok {
					required = append(required, s)
				}
			}
			toolParam.InputSchema.Required = required
		}

		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return tools
}

// OpenAITools converts definitions to OpenAI chat-completion tool
// params. Offline provider markers are skipped.
func OpenAITools(defs []router.Definition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		if def.Offline {
			continue
		}
		tools = append(tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(inputSchema(def)),
			},
		})
	}
	return tools
}

// inputSchema returns the definition's schema, or an empty object
// schema for tools without declared parameters.
func inputSchema(def router.Definition) map[string]interface{} {
	if len(def.InputSchema) > 0 {
		return def.InputSchema
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
