package llm

import (
	"encoding/json"
	"fmt"
)

// The conversation is stored in Anthropic's message shape; OpenAI requests
// and responses are translated at the wire boundary.

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Tools       []map[string]any   `json:"tools,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`

	// type=text
	Text string `json:"text,omitempty"`

	// type=tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// type=tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

func openAIExecuteCommandTool() openAITool {
	return openAITool{
		Type: "function",
		Function: openAIFunction{
			Name:        "execute_command",
			Description: "Execute a shell command and return its output",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{
						"type":        "string",
						"description": "The shell command to execute",
					},
					"explanation": map[string]any{
						"type":        "string",
						"description": "Brief explanation of what this command does",
					},
				},
				"required": []string{"command", "explanation"},
			},
		},
	}
}

func toOpenAIMessages(system string, history []anthropicMessage) []openAIMessage {
	out := make([]openAIMessage, 0, len(history)+1)
	if system != "" {
		out = append(out, openAIMessage{Role: "system", Content: system})
	}
	for _, msg := range history {
		switch msg.Role {
		case "assistant":
			var converted openAIMessage
			converted.Role = "assistant"
			for _, block := range msg.Content {
				switch block.Type {
				case "text":
					converted.Content += block.Text
				case "tool_use":
					args, _ := json.Marshal(block.Input)
					call := openAIToolCall{ID: block.ID, Type: "function"}
					call.Function.Name = block.Name
					call.Function.Arguments = string(args)
					converted.ToolCalls = append(converted.ToolCalls, call)
				}
			}
			out = append(out, converted)
		default:
			for _, block := range msg.Content {
				switch block.Type {
				case "text":
					out = append(out, openAIMessage{Role: "user", Content: block.Text})
				case "tool_result":
					out = append(out, openAIMessage{
						Role:       "tool",
						Content:    block.Content,
						ToolCallID: block.ToolUseID,
					})
				}
			}
		}
	}
	return out
}

func fromOpenAIResponse(resp *openAIResponse) (*anthropicResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: openai response contains no choices")
	}
	msg := resp.Choices[0].Message

	out := &anthropicResponse{ID: resp.ID, StopReason: resp.Choices[0].FinishReason}
	if msg.Content != "" {
		out.Content = append(out.Content, anthropicContentBlock{Type: "text", Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		var input map[string]any
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return nil, fmt.Errorf("llm: bad tool arguments: %w", err)
			}
		}
		out.Content = append(out.Content, anthropicContentBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}
	return out, nil
}
