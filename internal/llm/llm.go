// Package llm implements the conversational hook action's chat client:
// a prompt/tool-call/result loop against an Anthropic- or OpenAI-compatible
// chat API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/chatshell/internal/config"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com/v1/messages"
	defaultOpenAIURL    = "https://api.openai.com/v1/chat/completions"
	defaultMaxTokens    = 1000

	// MaxToolRounds bounds the command/feedback cycle within one prompt.
	MaxToolRounds = 10
)

const systemPrompt = `You are an assistant embedded in a transparent shell wrapper.
You help the user run shell commands. When a command is needed, call the
execute_command tool; the user confirms every command before it runs.
Be concise. Prefer safe commands and explain anything destructive.`

// CommandRequest is the model asking to run a shell command, pending user
// confirmation.
type CommandRequest struct {
	Command     string
	Explanation string
	ToolCallID  string
}

// Reply is one model turn: explanatory text, a command request, or both.
type Reply struct {
	Text    string
	Command *CommandRequest
}

// Conversation accumulates the message history for one session, identified
// by a fresh id after every reset.
type Conversation struct {
	ID       string
	Started  time.Time
	messages []anthropicMessage
}

func newConversation() *Conversation {
	return &Conversation{ID: uuid.NewString(), Started: time.Now()}
}

// Client talks to the configured chat API. It is not safe for concurrent
// use; the hook action that owns it runs serially on the bridge loop.
type Client struct {
	provider    string
	model       string
	apiKey      string
	baseURL     string
	maxTokens   int
	temperature float64
	httpClient  *http.Client

	conversation *Conversation
}

// New builds a client from config. A missing api_key falls back to the
// OPENAI_API_KEY or ANTHROPIC_API_KEY environment variable per provider.
func New(cfg config.LLMConfig) *Client {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "openai"
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	apiKey := strings.TrimSpace(cfg.APIKey)
	switch provider {
	case "anthropic":
		if baseURL == "" {
			baseURL = defaultAnthropicURL
		}
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	default:
		if baseURL == "" {
			baseURL = defaultOpenAIURL
		}
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		provider:     provider,
		model:        cfg.Model,
		apiKey:       apiKey,
		baseURL:      baseURL,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		conversation: newConversation(),
	}
}

// ConversationID returns the current conversation's id.
func (c *Client) ConversationID() string { return c.conversation.ID }

// Reset discards the conversation history and starts a new context.
func (c *Client) Reset() {
	c.conversation = newConversation()
}

// Send submits a user prompt and returns the model's reply, which may carry
// a command request to confirm and execute.
func (c *Client) Send(ctx context.Context, prompt string) (Reply, error) {
	c.conversation.messages = append(c.conversation.messages, anthropicMessage{
		Role:    "user",
		Content: []anthropicContentBlock{{Type: "text", Text: prompt}},
	})
	return c.roundTrip(ctx)
}

// SendCommandResult feeds the outcome of an executed (or declined) command
// back to the model and returns its follow-up reply.
func (c *Client) SendCommandResult(ctx context.Context, toolCallID, output string, success bool) (Reply, error) {
	status := "Command executed successfully"
	if !success {
		status = "Command failed"
	}
	c.conversation.messages = append(c.conversation.messages, anthropicMessage{
		Role: "user",
		Content: []anthropicContentBlock{{
			Type:      "tool_result",
			ToolUseID: toolCallID,
			Content:   status + ":\n" + output,
		}},
	})
	return c.roundTrip(ctx)
}

func (c *Client) roundTrip(ctx context.Context) (Reply, error) {
	resp, err := c.createMessage(ctx)
	if err != nil {
		return Reply{}, err
	}

	assistant := anthropicMessage{Role: "assistant", Content: resp.Content}
	c.conversation.messages = append(c.conversation.messages, assistant)

	var reply Reply
	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if t := strings.TrimSpace(block.Text); t != "" {
				texts = append(texts, t)
			}
		case "tool_use":
			if block.Name != "execute_command" || reply.Command != nil {
				continue
			}
			command, _ := block.Input["command"].(string)
			explanation, _ := block.Input["explanation"].(string)
			if command == "" {
				continue
			}
			reply.Command = &CommandRequest{
				Command:     command,
				Explanation: explanation,
				ToolCallID:  block.ID,
			}
		}
	}
	reply.Text = strings.Join(texts, "\n")
	if reply.Text == "" && reply.Command == nil {
		return Reply{}, fmt.Errorf("llm: empty response from %s", c.provider)
	}
	return reply, nil
}

func (c *Client) createMessage(ctx context.Context) (*anthropicResponse, error) {
	if c.provider == "openai" {
		return c.createOpenAIMessage(ctx)
	}
	return c.createAnthropicMessage(ctx)
}

func (c *Client) createAnthropicMessage(ctx context.Context) (*anthropicResponse, error) {
	req := anthropicRequest{
		Model:       c.model,
		System:      systemPrompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Tools:       []map[string]any{executeCommandSchema()},
		Messages:    c.conversation.messages,
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("llm: anthropic api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out anthropicResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) createOpenAIMessage(ctx context.Context) (*anthropicResponse, error) {
	openReq := openAIRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(systemPrompt, c.conversation.messages),
		Tools:       []openAITool{openAIExecuteCommandTool()},
		ToolChoice:  "auto",
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	buf, err := json.Marshal(openReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("llm: openai api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out openAIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, err
	}
	return fromOpenAIResponse(&out)
}

func executeCommandSchema() map[string]any {
	return map[string]any{
		"name":        "execute_command",
		"description": "Execute a shell command and return its output",
		"input_schema": map[string]any{
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
	}
}
