package llm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
)

// AnthropicClient implements the Client interface for Anthropic
type AnthropicClient struct {
	client *anthropic.Client
	config *ModelConfig
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(cfg *ModelConfig) (*AnthropicClient, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.ErrCodeConfig, "Anthropic config is required", nil)
	}
	if cfg.Model == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfig, "model name is required", nil)
	}

	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		client: &client,
		config: cfg,
	}, nil
}

// Generate sends a conversation and receives a response
func (c *AnthropicClient) Generate(ctx context.Context, messages []Message, genConfig *GenerateConfig) (*Response, error) {
	anthropicMessages, system := c.convertMessages(messages)

	// Max tokens is required by Anthropic
	maxTokens := 4096
	if genConfig != nil && genConfig.MaxTokens != nil {
		maxTokens = *genConfig.MaxTokens
	} else if c.config.MaxTokens != nil {
		maxTokens = *c.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(maxTokens),
		Messages:  anthropicMessages,
	}

	if genConfig != nil {
		if genConfig.Temperature != nil {
			params.Temperature = anthropic.Float(*genConfig.Temperature)
		} else if c.config.Temperature != nil {
			params.Temperature = anthropic.Float(*c.config.Temperature)
		}

		if len(genConfig.StopSequences) > 0 {
			params.StopSequences = genConfig.StopSequences
		}

		if len(genConfig.Tools) > 0 {
			params.Tools = c.convertTools(genConfig.Tools)
		}
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeModelCall, "Anthropic API call failed", err)
	}

	return c.convertResponse(message), nil
}

// ModelName returns the name of the model being used
func (c *AnthropicClient) ModelName() string {
	return c.config.Model
}

// convertMessages converts messages to Anthropic format; system messages
// are collected separately since Anthropic takes them as a request field
func (c *AnthropicClient) convertMessages(messages []Message) ([]anthropic.MessageParam, string) {
	converted := make([]anthropic.MessageParam, 0, len(messages))
	system := ""

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case RoleUser:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) > 0 {
				converted = append(converted, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			converted = append(converted, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		}
	}

	return converted, system
}

func (c *AnthropicClient) convertTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	converted := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, tool := range tools {
		properties, _ := tool.Parameters["properties"].(map[string]any)
		var required []string
		if raw, ok := tool.Parameters["required"].([]string); ok {
			required = raw
		}

		converted = append(converted, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		})
	}

	return converted
}

func (c *AnthropicClient) convertResponse(message *anthropic.Message) *Response {
	resp := &Response{
		FinishReason: string(message.StopReason),
	}

	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal(variant.Input, &args); err != nil {
				args = map[string]any{}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}

	return resp
}
