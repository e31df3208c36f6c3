package llm

import (
	"context"
	"encoding/json"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
)

// OpenAIClient implements the Client interface for OpenAI
type OpenAIClient struct {
	client *openai.Client
	config *ModelConfig
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(cfg *ModelConfig) (*OpenAIClient, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.ErrCodeConfig, "OpenAI config is required", nil)
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

	client := openai.NewClient(opts...)

	return &OpenAIClient{
		client: &client,
		config: cfg,
	}, nil
}

// Generate sends a conversation and receives a response
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message, genConfig *GenerateConfig) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.config.Model),
		Messages: c.convertMessages(messages),
	}

	if genConfig != nil {
		if genConfig.Temperature != nil {
			params.Temperature = openai.Float(*genConfig.Temperature)
		} else if c.config.Temperature != nil {
			params.Temperature = openai.Float(*c.config.Temperature)
		}

		if genConfig.MaxTokens != nil {
			params.MaxTokens = openai.Int(int64(*genConfig.MaxTokens))
		} else if c.config.MaxTokens != nil {
			params.MaxTokens = openai.Int(int64(*c.config.MaxTokens))
		}

		if len(genConfig.Tools) > 0 {
			params.Tools = c.convertTools(genConfig.Tools)
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeModelCall, "OpenAI API call failed", err)
	}

	return c.convertResponse(completion), nil
}

// ModelName returns the name of the model being used
func (c *OpenAIClient) ModelName() string {
	return c.config.Model
}

func (c *OpenAIClient) convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case RoleUser:
			converted = append(converted, openai.UserMessage(msg.Content))
		case RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				assistant := openai.ChatCompletionAssistantMessageParam{}
				if msg.Content != "" {
					assistant.Content.OfString = openai.String(msg.Content)
				}
				for _, tc := range msg.ToolCalls {
					args, _ := json.Marshal(tc.Arguments)
					assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(args),
						},
					})
				}
				converted = append(converted, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
			} else {
				converted = append(converted, openai.AssistantMessage(msg.Content))
			}
		case RoleTool:
			converted = append(converted, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return converted
}

func (c *OpenAIClient) convertTools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	converted := make([]openai.ChatCompletionToolParam, 0, len(tools))

	for _, tool := range tools {
		converted = append(converted, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Parameters),
			},
		})
	}

	return converted
}

func (c *OpenAIClient) convertResponse(completion *openai.ChatCompletion) *Response {
	resp := &Response{}
	if len(completion.Choices) == 0 {
		return resp
	}

	choice := completion.Choices[0]
	resp.Text = choice.Message.Content
	resp.FinishReason = string(choice.FinishReason)

	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{}
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return resp
}
