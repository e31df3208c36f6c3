package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/store"
)

const taskContextPrompt = `You are in a direct dialogue with the user helping them to add a task to an existing project.
Speak in the second person, as if in conversation with the user.
Your only job is to identify the name of the project that the task belongs to.
This job is internal to the application and should not be mentioned to the user.

The project name that the user enters must be an existing project.
Ask the user for a new project name if they enter one that does not exist. The new name is the one you should refer to at all times.

If the user only mentions that they would like to add a new task, you must assume that you do not yet have the project name.

Once you have gathered the correct project name, finish execution.
Do not send any message to the user at this point.`

const taskDialoguePrompt = `You are in a direct dialogue with the user, helping them to add a new task to a project as part of a project management application.
Speak in the second person, as if in conversation with the user.
A task is an objective to be completed in a project.
A task has a name (required), description (optional), start date (required), and end date (optional).
The task you are currently creating belongs to a parent project called %s.
This project has the following description (note that this is not the task description): %s

Using your knowledge of the task's parent project, help the user to add the task.
You must not add any details that the user does not explicitly mention, such as specific names.

The task's name must be quoted directly from the user's messages and must be formatted in title case.
The task description must be formatted as a properly capitalized and punctuated paragraph that could be read without additional context. It should be in the third-person.
If the user provides any dates in terms relative to today, use your knowledge of today's date (which is %s) to approximate the true values of these dates.
The task's start date must be formatted as YYYY-MM-DD. If the user does not specify a start date, assume that it is today's date. You must ask the user for the task's start date.
The task's end date must also be formatted as YYYY-MM-DD. You must ask the user for the task's end date, but it is permissible that they do not provide it.

Once you have confirmed that the task has been added, finish execution.
Do not ask any followup questions at this point.
You are not permitted to tell the user that the task has been added. You may only provide the information you have and ask for confirmation that it is correct.`

// TaskMaker adds a task to an existing project
func TaskMaker() *Definition {
	getContext := Tool{
		Name:        "get_task_context",
		Description: "Retrieves necessary context for the project which the new task belongs to.",
		Parameters: schema([]string{"project_name"}, map[string]any{
			"project_name": stringProp("The name of the project the task belongs to."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			projectName := stringArg(args, "project_name")

			rows, err := db.Select(ctx, "SELECT name FROM projects")
			if err != nil {
				return "", err
			}
			existingProjects := store.Column(rows, 0)

			if len(invalidValues([]string{projectName}, existingProjects)) > 0 {
				return "", apperrors.NewValidation(
					"Project with name %s does not exist. Please enter a valid project. Existing projects are: %s.",
					projectName, strings.Join(existingProjects, ", "))
			}

			taskRows, err := db.Select(ctx, "SELECT name FROM tasks")
			if err != nil {
				return "", err
			}
			descRows, err := db.Select(ctx, "SELECT description FROM projects WHERE name = !p1", projectName)
			if err != nil {
				return "", err
			}
			projectDesc := store.AsString(descRows[0][0])

			st.SetList("existing_projects", existingProjects)
			st.SetList("existing_tasks", store.Column(taskRows, 0))
			st.SetSlot("project_name", projectName)
			st.SetSlot("project_desc", projectDesc)
			return fmt.Sprintf("New task belongs to project with (name: %s) and (description: %s)",
				projectName, projectDesc), nil
		},
	}

	addTask := Tool{
		Name:        "add_task",
		Description: "Loads provided information into a new task to be created.",
		Parameters: schema([]string{"task_name"}, map[string]any{
			"task_name":        stringProp("The name of the new task."),
			"task_description": stringProp("The description of the new task."),
			"start_date":       stringProp("The start date of the task, formatted as YYYY-MM-DD. Defaults to today."),
			"end_date":         stringProp("The end date of the task, formatted as YYYY-MM-DD."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			name := prefer(stringArg(args, "task_name"), st.Slot("task_name"))
			desc := prefer(stringArg(args, "task_description"), st.Slot("task_desc"))
			start := prefer(stringArg(args, "start_date"), st.Slot("start_date"))
			end := prefer(stringArg(args, "end_date"), st.Slot("end_date"))

			if start == "" {
				start = time.Now().Format("2006-01-02")
			}

			if st.HasListed("existing_tasks", name) {
				return "", apperrors.NewValidation(
					"Task with name %s already exists. Please enter a valid task name.", name)
			}

			st.SetSlot("task_name", name)
			st.SetSlot("task_desc", desc)
			st.SetSlot("start_date", start)
			st.SetSlot("end_date", end)
			return fmt.Sprintf(
				"Updated name to: %s\nUpdated description to: %s\nUpdated start date to: %s\nUpdated end date to: %s",
				name, desc, start, end), nil
		},
	}

	return &Definition{
		Kind:  "task_maker",
		Label: "adding a new task",
		ContextReady: func(st *State) bool {
			return st.Slot("project_name") != "" && st.HasListed("existing_projects", st.Slot("project_name"))
		},
		ContextPrompt: taskContextPrompt,
		ContextTools:  []Tool{getContext},
		DialoguePrompt: func(st *State) string {
			return fmt.Sprintf(taskDialoguePrompt,
				st.Slot("project_name"), st.Slot("project_desc"), time.Now().Format("2006-01-02"))
		},
		DialogueTools: []Tool{addTask, finishTool("task creation dialogue")},
		Commit: func(ctx context.Context, st *State, db store.Querier) (string, error) {
			rows, err := db.Select(ctx, "SELECT project_id FROM projects WHERE name = !p1", st.Slot("project_name"))
			if err != nil {
				return "", err
			}
			projectID := store.AsInt64(rows[0][0])

			err = db.Execute(ctx,
				`INSERT INTO tasks(project_id, name, description, start, "end") VALUES(!p1, !p2, !p3, !p4, !p5)`,
				projectID, st.Slot("task_name"), st.Slot("task_desc"), st.Slot("start_date"), st.Slot("end_date"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf(
				"New task added with\nParent Project: %s\nName: %s\nDescription: %s\nStart Date: %s\nEnd Date: %s",
				st.Slot("project_name"), st.Slot("task_name"), st.Slot("task_desc"),
				st.Slot("start_date"), st.Slot("end_date")), nil
		},
		Reportable: []string{"project_name", "task_name", "task_desc", "start_date", "end_date"},
	}
}
