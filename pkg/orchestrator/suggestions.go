package orchestrator

import (
	"context"
	"fmt"

	"github.com/foreman-dev/foreman/pkg/llm"
)

const suggestPromptFormat = `You are helping the user to create and manage their projects as part of a project management software.
Your task is to recommend the use of a secondary project management function based on the most recent one that the user has utilized.
The following are existing project management functions and which recommendations to offer in each case.

Adding a new project: recommended secondary functions are adding a new requirement
Adding a new requirement: recommended secondary functions are adding another requirement
Adding a new task: recommended secondary functions are adding a new task dependency, adding a new resource, and assigning a resource to that task
Adding a new task dependency: recommended secondary functions are adding another task dependency
Adding a new resource: recommended secondary functions are assigning that resource to a task
Assigning a resource: recommended secondary functions are adding a new resource
Asking questions about/analyzing the project: there are no recommended secondary functions

The user's most recently used function is %s
Take into consideration this information, recent message context, and the above list.
Also consider any questions asked in the AI message after the latest tool call.
Call propose_followup with a followup question using these factors that respectfully asks the user whether they would like to utilize an appropriate secondary function.
Ensure that the question is formatted as a proper sentence.`

func proposeFollowupTool() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "propose_followup",
		Description: "Reports the followup question recommending a secondary project management function.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"followup": map[string]any{
					"type":        "string",
					"description": "A followup question for the user to answer and give further clarification, if necessary.",
				},
			},
			"required": []string{"followup"},
		},
	}
}

// suggest asks the dialogue capability for a follow-up question based on
// the last completed operation
func (o *Orchestrator) suggest(ctx context.Context, lastOperation string, messages []llm.Message) (string, error) {
	prompt := fmt.Sprintf(suggestPromptFormat, lastOperation)
	request := append([]llm.Message{llm.SystemMessage(prompt)}, messages...)

	resp, err := o.model.Generate(ctx, request, &llm.GenerateConfig{
		Tools: []llm.ToolDefinition{proposeFollowupTool()},
	})
	if err != nil {
		return "", err
	}

	if len(resp.ToolCalls) > 0 {
		if followup, ok := resp.ToolCalls[0].Arguments["followup"].(string); ok {
			return followup, nil
		}
	}
	return resp.Text, nil
}
