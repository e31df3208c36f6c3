package workflow

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/store"
)

const assignmentContextPrompt = `You are in a direct dialogue with the user helping them to assign a resource to a task as part of a project management application.
Speak in the second person, as if in conversation with the user.
A resource is defined as a person with a first and optionally last name.
Your only job is to identify the first name and, if present, last name of the resource the user wants to assign.
This job is internal to the application and should not be mentioned to the user.

The first and last names provided must belong to an existing resource.
Ask the user for a new first and/or last name if they enter ones that do not exist. The new names are the ones you should refer to at all times.
Do not use any names that the user does not explicitly mention (e.g. placeholders like John Doe or Jane Doe).

If the user only mentions that they would like to assign a resource, you must assume that you do not yet have the resource's name.

Once you have gathered the correct resource first and last name, finish execution.
Do not send any message to the user at this point.`

const assignmentDialoguePrompt = `You are in a direct dialogue with the user, helping them to assign a new resource to a task in a project as part of a project management application.
Speak in the second person, as if in conversation with the user.
A resource is defined as an individual who contributes to a project by completing tasks within the project.

The following list contains information on the resources that match the name of the resource that the user would like to assign:
%s
Provide this information to the user and ask them which resource is the correct one that they wish to assign.
Then, help the user to assign this resource to the appropriate task.

The task to which the resource is assigned must be an existing task.
Ask the user for a new task name if they enter one which does not exist. This is the one you should refer to at all times.

Once you have confirmed that the resource has been assigned, finish execution.
Do not ask any followup questions at this point.
You are not permitted to tell the user that the resource has been assigned. You may only provide the information you have and ask for confirmation that it is correct.`

// ResourceAssigner assigns an existing resource to an existing task. When
// several resources share the requested name, the dialogue lists their
// contact methods and asks the user to disambiguate.
func ResourceAssigner() *Definition {
	getContext := Tool{
		Name:        "get_resource_assignment_context",
		Description: "Retrieves necessary context for the assignment of an existing resource.",
		Parameters: schema([]string{"first_name"}, map[string]any{
			"first_name": stringProp("The first name of the resource to assign."),
			"last_name":  stringProp("The last name of the resource to assign, if known."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			firstName := prefer(stringArg(args, "first_name"), st.Slot("re_first_name"))
			lastName := prefer(stringArg(args, "last_name"), st.Slot("re_last_name"))

			taskRows, err := db.Select(ctx, "SELECT name FROM tasks")
			if err != nil {
				return "", err
			}

			var rows [][]any
			if lastName != "" {
				rows, err = db.Select(ctx,
					"SELECT first_name, last_name, contact FROM resources WHERE first_name = !p1 AND last_name = !p2",
					firstName, lastName)
			} else {
				rows, err = db.Select(ctx,
					"SELECT first_name, last_name, contact FROM resources WHERE first_name = !p1 AND last_name IS NULL",
					firstName)
			}
			if err != nil {
				return "", err
			}
			if len(rows) == 0 {
				return "", apperrors.NewValidation(
					"No resources with first name %s and last name %s exist. Please enter valid resource information.",
					firstName, lastName)
			}

			matches := make([][]string, 0, len(rows))
			for _, row := range rows {
				matches = append(matches, []string{
					store.AsString(row[0]), store.AsString(row[1]), store.AsString(row[2]),
				})
			}

			st.SetList("existing_tasks", store.Column(taskRows, 0))
			st.Matches = matches
			st.SetSlot("re_first_name", firstName)
			st.SetSlot("re_last_name", lastName)
			return fmt.Sprintf("Resource has first name %s and last name %s", firstName, lastName), nil
		},
	}

	assign := Tool{
		Name:        "assign_resource",
		Description: "Loads provided information into the assignment of a new resource.",
		Parameters: schema(nil, map[string]any{
			"task_name":        stringProp("The name of the task the resource is assigned to."),
			"resource_contact": stringProp("The contact of the resource being assigned."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			taskName := prefer(stringArg(args, "task_name"), st.Slot("task_name"))
			contact := prefer(stringArg(args, "resource_contact"), st.Slot("re_contact"))

			if !st.HasListed("existing_tasks", taskName) {
				return "", apperrors.NewValidation(
					"Task with name %s does not exist. Please enter a valid task. Existing tasks are %s",
					taskName, strings.Join(st.List("existing_tasks"), ", "))
			}

			taskRows, err := db.Select(ctx, "SELECT task_id FROM tasks WHERE name = !p1", taskName)
			if err != nil {
				return "", err
			}
			resourceRows, err := db.Select(ctx, "SELECT resource_id FROM resources WHERE contact = !p1", contact)
			if err != nil {
				return "", err
			}
			if len(resourceRows) == 0 {
				return "", apperrors.NewValidation(
					"No resource with contact %s exists. Please enter a valid contact.", contact)
			}

			existing, err := db.Select(ctx,
				"SELECT assignment_id FROM resource_assignments WHERE task_id = !p1 AND resource_id = !p2",
				store.AsInt64(taskRows[0][0]), store.AsInt64(resourceRows[0][0]))
			if err != nil {
				return "", err
			}
			if len(existing) > 0 {
				return "", apperrors.NewValidation(
					"Resource with contact %s has already been assigned to task %s. Please enter a valid assignment.",
					contact, taskName)
			}

			st.SetSlot("task_name", taskName)
			st.SetSlot("re_contact", contact)
			return fmt.Sprintf("Updated task name to: %s\nUpdated contact to: %s", taskName, contact), nil
		},
	}

	return &Definition{
		Kind:  "resource_assigner",
		Label: "assigning a resource",
		ContextReady: func(st *State) bool {
			return len(st.Matches) > 0
		},
		ContextPrompt: assignmentContextPrompt,
		ContextTools:  []Tool{getContext},
		DialoguePrompt: func(st *State) string {
			descriptions := make([]string, 0, len(st.Matches))
			for _, match := range st.Matches {
				descriptions = append(descriptions,
					fmt.Sprintf("Resource(first_name: %s, last_name: %s, contact: %s)",
						match[0], match[1], match[2]))
			}
			return fmt.Sprintf(assignmentDialoguePrompt, strings.Join(descriptions, ", "))
		},
		DialogueTools: []Tool{assign, finishTool("resource assignment dialogue")},
		Commit: func(ctx context.Context, st *State, db store.Querier) (string, error) {
			taskRows, err := db.Select(ctx, "SELECT task_id FROM tasks WHERE name = !p1", st.Slot("task_name"))
			if err != nil {
				return "", err
			}
			if len(taskRows) == 0 {
				return "", apperrors.New(apperrors.ErrCodeWorkflow,
					fmt.Sprintf("resource_assigner committed without a confirmed task (slot %q)", st.Slot("task_name")), nil)
			}
			resourceRows, err := db.Select(ctx, "SELECT resource_id FROM resources WHERE contact = !p1", st.Slot("re_contact"))
			if err != nil {
				return "", err
			}
			if len(resourceRows) == 0 {
				return "", apperrors.New(apperrors.ErrCodeWorkflow,
					fmt.Sprintf("resource_assigner committed without a confirmed resource (slot %q)", st.Slot("re_contact")), nil)
			}

			err = db.Execute(ctx,
				"INSERT INTO resource_assignments(task_id, resource_id) VALUES(!p1, !p2)",
				store.AsInt64(taskRows[0][0]), store.AsInt64(resourceRows[0][0]))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Assigned resource with contact %s to task with name %s",
				st.Slot("re_contact"), st.Slot("task_name")), nil
		},
		Reportable: []string{"task_name", "re_first_name", "re_last_name", "re_contact"},
	}
}
