package workflow

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/store"
)

const dependencyContextPrompt = `You are in a direct dialogue with the user helping them to add a task dependency to an existing project.
Speak in the second person, as if in conversation with the user.
Your only job is to identify the names of the two tasks involved in the task dependency.
This job is internal to the application and should not be mentioned to the user.

The task names that the user enters must both be existing tasks and they must not be involved in a dependency with each other already.
Ask the user for new tasks if they enter ones that do not exist or are already involved in a dependency.
The new names are the ones you should refer to at all times.
It is possible that one or both of the tasks in the dependency are invalid. You must make sure to correct all invalid tasks.

If the user only mentions that they would like to add a new dependency, you must assume that you do not yet have the task names.

Once you have gathered the correct task names, finish execution.
Do not send any message to the user at this point.`

const dependencyDialoguePrompt = `You are in a direct dialogue with the user, helping them to add a new task dependency to a project as part of a project management application.
Speak in the second person, as if in conversation with the user.
Task 2 is defined as dependent on Task 1 if Task 1 must be finished before Task 2 can be completed.
A dependency has a description (optional).
The task dependency you are currently creating involves two tasks.
One has the name %s.
This task has the following description (note that this is not the dependency description): %s
The other has the name %s.
This task has the following description (note that this is not the dependency description): %s

Using your knowledge of the two tasks involved, help the user to add the task dependency.
You must not add any details that the user does not explicitly mention, such as specific names.

Ensure that you understand which task is dependent on the other. If the user has not made it clear, you must ask them to explicitly explain it.
The task dependency description must be formatted as a properly capitalized and punctuated paragraph that could be read without additional context. It should be in the third-person.

Once you have confirmed that the dependency has been added, finish execution.
Do not ask any followup questions at this point.
You are not permitted to tell the user that the dependency has been added. You may only provide the information you have and ask for confirmation that it is correct.`

// DependencyMaker links two existing tasks with a dependency
func DependencyMaker() *Definition {
	getContext := Tool{
		Name:        "get_dependency_context",
		Description: "Retrieves necessary context for the dependent and independent tasks.",
		Parameters: schema(nil, map[string]any{
			"task1_name": stringProp("The name of the task that must finish first."),
			"task2_name": stringProp("The name of the task that depends on the first."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			task1 := prefer(stringArg(args, "task1_name"), st.Slot("task1_name"))
			task2 := prefer(stringArg(args, "task2_name"), st.Slot("task2_name"))

			rows, err := db.Select(ctx, "SELECT name FROM tasks")
			if err != nil {
				return "", err
			}
			existingTasks := store.Column(rows, 0)

			invalid := invalidValues([]string{task1, task2}, existingTasks)
			if len(invalid) > 0 {
				return "", apperrors.NewValidation(
					"The following tasks do not exist: %s. Please enter valid tasks. Existing tasks are %s.",
					strings.Join(invalid, ", "), strings.Join(existingTasks, ", "))
			}

			row1, err := db.Select(ctx, "SELECT task_id, description FROM tasks WHERE name = !p1", task1)
			if err != nil {
				return "", err
			}
			row2, err := db.Select(ctx, "SELECT task_id, description FROM tasks WHERE name = !p1", task2)
			if err != nil {
				return "", err
			}
			task1ID, task1Desc := store.AsInt64(row1[0][0]), store.AsString(row1[0][1])
			task2ID, task2Desc := store.AsInt64(row2[0][0]), store.AsString(row2[0][1])

			// A dependency in either direction blocks a new one
			existing, err := db.Select(ctx,
				`SELECT dependency_id FROM task_dependencies
				WHERE task_id IN (!p1, !p2) AND dependent_id IN (!p1, !p2)`,
				task1ID, task2ID)
			if err != nil {
				return "", err
			}
			if len(existing) > 0 {
				return "", apperrors.NewValidation(
					"A dependency already exists between tasks %s and %s. Please enter a valid dependency.",
					task1, task2)
			}

			st.SetList("existing_tasks", existingTasks)
			st.SetSlot("task1_name", task1)
			st.SetSlot("task1_desc", task1Desc)
			st.SetSlot("task2_name", task2)
			st.SetSlot("task2_desc", task2Desc)
			return fmt.Sprintf(
				"New dependency between task with (name: %s, description: %s) and task with (name: %s, description: %s)",
				task1, task1Desc, task2, task2Desc), nil
		},
	}

	addDependency := Tool{
		Name:        "add_task_dependency",
		Description: "Loads provided information into a new task dependency to be created. Task 2 is dependent on Task 1 if Task 1 must be finished before Task 2 can be completed.",
		Parameters: schema(nil, map[string]any{
			"task1_name":  stringProp("The name of the task that must finish first."),
			"task2_name":  stringProp("The name of the dependent task."),
			"description": stringProp("The description of the dependency."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			task1 := prefer(stringArg(args, "task1_name"), st.Slot("task1_name"))
			task2 := prefer(stringArg(args, "task2_name"), st.Slot("task2_name"))
			description := prefer(stringArg(args, "description"), st.Slot("dep_desc"))

			st.SetSlot("task1_name", task1)
			st.SetSlot("task2_name", task2)
			st.SetSlot("dep_desc", description)
			return fmt.Sprintf("Updated Task 1 to: %s\nUpdated Task 2 to: %s\nUpdated description to: %s",
				task1, task2, description), nil
		},
	}

	return &Definition{
		Kind:  "dep_maker",
		Label: "adding a new task dependency",
		ContextReady: func(st *State) bool {
			return st.Slot("task1_name") != "" && st.Slot("task2_name") != "" &&
				st.HasListed("existing_tasks", st.Slot("task1_name")) &&
				st.HasListed("existing_tasks", st.Slot("task2_name"))
		},
		ContextPrompt: dependencyContextPrompt,
		ContextTools:  []Tool{getContext},
		DialoguePrompt: func(st *State) string {
			return fmt.Sprintf(dependencyDialoguePrompt,
				st.Slot("task1_name"), st.Slot("task1_desc"),
				st.Slot("task2_name"), st.Slot("task2_desc"))
		},
		DialogueTools: []Tool{addDependency, finishTool("task dependency creation dialogue")},
		Commit: func(ctx context.Context, st *State, db store.Querier) (string, error) {
			row1, err := db.Select(ctx, "SELECT task_id FROM tasks WHERE name = !p1", st.Slot("task1_name"))
			if err != nil {
				return "", err
			}
			row2, err := db.Select(ctx, "SELECT task_id FROM tasks WHERE name = !p1", st.Slot("task2_name"))
			if err != nil {
				return "", err
			}

			err = db.Execute(ctx,
				"INSERT INTO task_dependencies(task_id, dependent_id, description) VALUES(!p1, !p2, !p3)",
				store.AsInt64(row1[0][0]), store.AsInt64(row2[0][0]), st.Slot("dep_desc"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("New task dependency added with\nTask %s dependent on task %s\nDescription: %s",
				st.Slot("task2_name"), st.Slot("task1_name"), st.Slot("dep_desc")), nil
		},
		Reportable: []string{"task1_name", "task2_name", "dep_desc"},
	}
}
