package workflow

import (
	"context"

	"github.com/foreman-dev/foreman/pkg/llm"
	"github.com/foreman-dev/foreman/pkg/store"
)

// Tool is a model-invocable step that validates against the store and
// updates sub-workflow state. A returned ValidationError is surfaced back
// into the conversation rather than failing the run.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
	Run         func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error)
}

func toolDefinitions(tools []Tool) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

func toolByName(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// stringArg extracts a string argument, tolerating absence
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// stringListArg extracts a string list argument, dropping empty entries
func stringListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var values []string
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			values = append(values, s)
		}
	}
	return values
}

// schema builds a JSON Schema object for tool parameters
func schema(required []string, properties map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func stringListProp(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

// finishTool terminates the dialogue loop of every sub-workflow
func finishTool(dialogue string) Tool {
	return Tool{
		Name:        "finish_execution",
		Description: "Finishes execution of the current portion of the " + dialogue + ".",
		Parameters:  schema(nil, map[string]any{}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			st.Finish = true
			return "Execution of current node complete. Moving to next node.", nil
		},
	}
}
