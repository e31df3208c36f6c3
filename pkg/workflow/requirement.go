package workflow

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/store"
)

const requirementContextPrompt = `You are in a direct dialogue with the user helping them to add a requirement to an existing project.
Speak in the second person, as if in conversation with the user.
Your only job is to identify the name of the project that the requirement belongs to.
This job is internal to the application and should not be mentioned to the user.

The project name that the user enters must be an existing project.
Ask the user for a new project name if they enter one that does not exist. The new name is the one you should refer to at all times.

If the user only mentions that they would like to add a new requirement, you must assume that you do not yet have the project name.

Once you have gathered the correct project name, finish execution.
Do not send any message to the user at this point.`

const requirementDialoguePrompt = `You are in a direct dialogue with the user, helping them to add a new requirement to a project as part of a project management application.
Speak in the second person, as if in conversation with the user.
A requirement is defined as a condition or capability that must be fulfilled for a project to be considered successful.
A requirement has a description (required).
The requirement you are currently creating belongs to a parent project called %s.
This project has the following description (note that this is not the requirement description): %s

Using your knowledge of the requirement's parent project, help the user to add the requirement.
You must not add any details that the user does not explicitly mention, such as specific names.

The requirement description must be formatted as a properly capitalized and punctuated paragraph that could be read without additional context. It should be in the third-person.

Once you have confirmed that the requirement has been added, finish execution.
Do not ask any followup questions at this point.
You are not permitted to tell the user that the requirement has been added. You may only provide the information you have and ask for confirmation that it is correct.`

// RequirementMaker adds a requirement to an existing project
func RequirementMaker() *Definition {
	getContext := Tool{
		Name:        "get_requirement_context",
		Description: "Retrieves necessary context for the project that the new requirement belongs to.",
		Parameters: schema([]string{"project_name"}, map[string]any{
			"project_name": stringProp("The name of the project the requirement belongs to."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			projectName := stringArg(args, "project_name")

			rows, err := db.Select(ctx, "SELECT name FROM projects")
			if err != nil {
				return "", err
			}
			existing := store.Column(rows, 0)

			valid := false
			for _, name := range existing {
				if name == projectName {
					valid = true
					break
				}
			}
			if !valid {
				return "", apperrors.NewValidation(
					"Project with name %s does not exist. Please enter a valid project. Existing projects are: %s.",
					projectName, strings.Join(existing, ", "))
			}

			descRows, err := db.Select(ctx, "SELECT description FROM projects WHERE name = !p1", projectName)
			if err != nil {
				return "", err
			}
			projectDesc := store.AsString(descRows[0][0])

			st.SetList("existing_projects", existing)
			st.SetSlot("project_name", projectName)
			st.SetSlot("project_desc", projectDesc)
			return fmt.Sprintf("New requirement belongs to project with (name: %s) and (description: %s)",
				projectName, projectDesc), nil
		},
	}

	addRequirement := Tool{
		Name:        "add_requirement",
		Description: "Loads provided information into a new requirement to be created.",
		Parameters: schema(nil, map[string]any{
			"project_name": stringProp("The name of the parent project."),
			"description":  stringProp("The description of the new requirement."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			projectName := prefer(stringArg(args, "project_name"), st.Slot("project_name"))
			description := prefer(stringArg(args, "description"), st.Slot("req_desc"))

			st.SetSlot("project_name", projectName)
			st.SetSlot("req_desc", description)
			return fmt.Sprintf("Updated parent project to: %s.\nUpdated description to: %s",
				projectName, description), nil
		},
	}

	return &Definition{
		Kind:  "req_maker",
		Label: "adding a new requirement",
		ContextReady: func(st *State) bool {
			return st.Slot("project_name") != "" && st.HasListed("existing_projects", st.Slot("project_name"))
		},
		ContextPrompt: requirementContextPrompt,
		ContextTools:  []Tool{getContext},
		DialoguePrompt: func(st *State) string {
			return fmt.Sprintf(requirementDialoguePrompt, st.Slot("project_name"), st.Slot("project_desc"))
		},
		DialogueTools: []Tool{addRequirement, finishTool("requirement creation dialogue")},
		Commit: func(ctx context.Context, st *State, db store.Querier) (string, error) {
			rows, err := db.Select(ctx, "SELECT project_id FROM projects WHERE name = !p1", st.Slot("project_name"))
			if err != nil {
				return "", err
			}
			projectID := store.AsInt64(rows[0][0])

			err = db.Execute(ctx, "INSERT INTO requirements(project_id, description) VALUES(!p1, !p2)",
				projectID, st.Slot("req_desc"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("New requirement added with\nName: %s\nDescription: %s",
				st.Slot("project_name"), st.Slot("req_desc")), nil
		},
		Reportable: []string{"project_name", "req_desc"},
	}
}
