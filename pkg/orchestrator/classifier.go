package orchestrator

import (
	"context"

	"github.com/foreman-dev/foreman/pkg/llm"
)

// Intent is one operation kind in the classification taxonomy
type Intent struct {
	Name        string
	Workflow    string
	Description string
}

// Taxonomy is the fixed, ordered list of operation kinds. The pending
// queue is always built in this declared order, not in the order the user
// mentioned the operations.
var Taxonomy = []Intent{
	{"add_project", "project_maker", "The number of times that the user wants to create a new project."},
	{"add_requirement", "req_maker", "The number of times that the user wants to create a new requirement for an existing project."},
	{"add_task", "task_maker", "The number of times that the user wants to create a new task."},
	{"add_task_dependency", "dep_maker", "The number of times that the user wants to add a task dependency."},
	{"add_resource", "resource_maker", "The number of times that the user wants to create a new resource."},
	{"assign_resource", "resource_assigner", "The number of times that the user wants to assign a resource to an existing task."},
	{"analyze_project", "analyst", "Whether or not the user wants to ask questions about or analyze the project. 0 if not, 1 if so."},
}

const liaisonPrompt = `You are an AI that determines which project management functions the user wants to utilize and how many times they wish to utilize each function.
This does not refer to external functions, but rather internal ones like creating a project, adding tasks, etc.
Do not explicitly ask the user for which functions they would like to use. It is your job to inference that information from their messages.
The following are functions the user may want to use. They are each distinct and should be treated as such.

Adding a new project
Adding a new requirement to a project
Adding a new task
Adding a new task dependency
Adding a new resource
Assigning a resource
Asking questions about/analyzing the project

Based on the user's request, call route_request with the appropriate number of function calls for each function at your disposal.
If and only if you cannot understand the user's request, include a followup question (in the form of a comprehensible sentence) that respectfully asks the user to give a different request.`

const suggestCommitPrompt = `You are helping the user to create and manage their projects as part of a project management software.
Your task is to recommend the use of a secondary project management function based on the most recent one that the user has utilized.

Examine the provided messages and context to determine which project functions the user would like to use and how many of each.
Based on the user's response to the AI-prompted question, call route_request with the appropriate number of calls for each function at your disposal.
Remember that it is possible that the user may not wish to use any tools at all.

If the user's response is negative, assume that they do not wish to add any tools.`

// Classification is the structured result of one routing turn
type Classification struct {
	Counts   map[string]int
	Followup string
}

func routeRequestTool() llm.ToolDefinition {
	properties := map[string]any{
		"followup": map[string]any{
			"type":        "string",
			"description": "A followup question asking the user to provide more clear information, if necessary.",
		},
	}
	for _, intent := range Taxonomy {
		properties[intent.Name] = map[string]any{
			"type":        "integer",
			"description": intent.Description,
		}
	}

	return llm.ToolDefinition{
		Name:        "route_request",
		Description: "Reports how many times the user requested each project management function.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
		},
	}
}

// classify runs the routing capability over the given messages. A
// malformed or missing structured response degrades to zero counts rather
// than failing the turn.
func (o *Orchestrator) classify(ctx context.Context, prompt string, messages []llm.Message) (*Classification, error) {
	request := append([]llm.Message{llm.SystemMessage(prompt)}, messages...)

	resp, err := o.model.Generate(ctx, request, &llm.GenerateConfig{
		Tools: []llm.ToolDefinition{routeRequestTool()},
	})
	if err != nil {
		return nil, err
	}

	result := &Classification{Counts: map[string]int{}}

	if len(resp.ToolCalls) == 0 {
		// Treated as classification ambiguity when the model answered in
		// prose, and as an absorbed turn otherwise
		result.Followup = resp.Text
		return result, nil
	}

	args := resp.ToolCalls[0].Arguments
	for _, intent := range Taxonomy {
		result.Counts[intent.Name] = intArg(args, intent.Name)
	}
	if followup, ok := args["followup"].(string); ok {
		result.Followup = followup
	}

	return result, nil
}

// buildQueue expands classification counts into sub-workflow names in the
// fixed taxonomy order
func buildQueue(c *Classification) []string {
	var queue []string
	for _, intent := range Taxonomy {
		for i := 0; i < c.Counts[intent.Name]; i++ {
			queue = append(queue, intent.Workflow)
		}
	}
	return queue
}

// intArg tolerates the JSON number decodings a model reply can carry
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return 0
}
