package workflow

import (
	"context"
	"fmt"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/store"
)

const projectDialoguePrompt = `You are in a direct dialogue with the user, helping them to create a new project as part of a project management application.
Speak in the second person, as if in conversation with the user.
A project has a name (required) and a description (optional).

The name of the new project cannot be the same as any existing projects' names.
Ask the user for a new name if they enter one that exists already. The new name is the one you should refer to at all times.

If the user only mentions that they would like to make a new project, you must assume that you do not yet have the project name.
You must ask the user for a description for the project, but it is permissible that they do not provide it.
You must not add any details that the user does not explicitly mention, such as specific names.

The project's name must be quoted directly from the user's messages and must be formatted in title case.
The description must be formatted as a properly capitalized and punctuated paragraph that could be read without additional context. It should be in the third-person.

Once you have confirmed that the project has been added, finish execution.
Do not ask any followup questions at this point.
You are not permitted to tell the user that the project has been added. You may only provide the information you have and ask for confirmation that it is correct.`

// ProjectMaker creates a new project from a guided dialogue
func ProjectMaker() *Definition {
	addProject := Tool{
		Name:        "add_project",
		Description: "Loads provided name and description information into a new project to be created.",
		Parameters: schema([]string{"name"}, map[string]any{
			"name":        stringProp("The name of the new project."),
			"description": stringProp("The description of the new project."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			name := prefer(stringArg(args, "name"), st.Slot("project_name"))
			desc := prefer(stringArg(args, "description"), st.Slot("project_desc"))

			if st.HasListed("existing_projects", name) {
				return "", apperrors.NewValidation(
					"Project with name %s already exists. Please enter a valid project name.", name)
			}

			st.SetSlot("project_name", name)
			st.SetSlot("project_desc", desc)
			return fmt.Sprintf("Updated project name to: %s.\nUpdated project description to: %s", name, desc), nil
		},
	}

	return &Definition{
		Kind:  "project_maker",
		Label: "adding a new project",
		LoadContext: func(ctx context.Context, st *State, db store.Querier) error {
			rows, err := db.Select(ctx, "SELECT name FROM projects")
			if err != nil {
				return err
			}
			st.SetList("existing_projects", store.Column(rows, 0))
			return nil
		},
		DialoguePrompt: func(st *State) string { return projectDialoguePrompt },
		DialogueTools:  []Tool{addProject, finishTool("project creation dialogue")},
		Commit: func(ctx context.Context, st *State, db store.Querier) (string, error) {
			err := db.Execute(ctx, "INSERT INTO projects(name, description) VALUES(!p1, !p2)",
				st.Slot("project_name"), st.Slot("project_desc"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("New project added with\nName: %s\nDescription: %s",
				st.Slot("project_name"), st.Slot("project_desc")), nil
		},
		Reportable: []string{"project_name", "project_desc"},
	}
}
