package workflow

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/store"
)

const analystContextPrompt = `You are in a direct dialogue with the user, preparing to answer their questions about one of their projects in a project management application.
Speak in the second person, as if in conversation with the user.
Your only job is to identify the name of the project that the user wants to analyze.
This job is internal to the application and should not be mentioned to the user.

The project name that the user enters must be an existing project.
Ask the user for a new project name if they enter one that does not exist. The new name is the one you should refer to at all times.

If the user only mentions that they would like to ask questions/analyze the project, you must assume that you do not yet have the project name.

Once you have gathered the correct project name, finish execution.
Do not send any message to the user at this point.`

const analystDialoguePrompt = `You are in a direct dialogue with the user, preparing to answer their questions about one of their projects in a project management application.
Speak in the second person, as if in conversation with the user.

Use the tools at your disposal to retrieve information about the project and answer the user's questions.
If the user asks for an analysis, use your best insight and offer an answer to their request.
When retrieving information about the project, only use search arguments that the user has explicitly stated.
Do not come up with your own arguments (e.g. task names, resource names, etc.)

If the user does not specify values for a parameter (e.g. they do not mention any task names when searching for tasks), do not pass an argument to that parameter.

Once the user has made it clear that they want to ask no more questions, finish execution.
Do not ask any followup questions past this point.`

// inCondition renders "column IN ('a', 'b')" for a sanitized value list, or
// "" when no filter applies
func inCondition(column string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	sanitized := make([]string, 0, len(values))
	for _, v := range values {
		s, err := store.Sanitize(v)
		if err != nil {
			continue
		}
		sanitized = append(sanitized, s)
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(sanitized, ", "))
}

func andConditions(conditions ...string) string {
	var active []string
	for _, c := range conditions {
		if c != "" {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return ""
	}
	return " AND " + strings.Join(active, " AND ")
}

// Analyst answers read-only questions about one project. It never writes
// and produces no ledger entry.
func Analyst() *Definition {
	getContext := Tool{
		Name:        "get_analysis_context",
		Description: "Retrieves information about the project which the user wants to analyze.",
		Parameters: schema([]string{"project_name"}, map[string]any{
			"project_name": stringProp("The name of the project to analyze."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			projectName := stringArg(args, "project_name")

			rows, err := db.Select(ctx, "SELECT name FROM projects")
			if err != nil {
				return "", err
			}
			if len(invalidValues([]string{projectName}, store.Column(rows, 0))) > 0 {
				return "", apperrors.NewValidation(
					"Project with name %s does not exist. Please enter a valid project.", projectName)
			}

			projectRows, err := db.Select(ctx,
				"SELECT project_id, description FROM projects WHERE name = !p1", projectName)
			if err != nil {
				return "", err
			}
			projectID := store.AsInt64(projectRows[0][0])
			projectDesc := store.AsString(projectRows[0][1])

			taskRows, err := db.Select(ctx, "SELECT name FROM tasks WHERE project_id = !p1", projectID)
			if err != nil {
				return "", err
			}

			st.ProjectID = projectID
			st.SetList("existing_tasks", store.Column(taskRows, 0))
			st.SetSlot("project_name", projectName)
			st.SetSlot("project_desc", projectDesc)
			return fmt.Sprintf(
				"The user will be asking for information about the following project.\nProject Name: %s\nProject Description: %s",
				projectName, projectDesc), nil
		},
	}

	getRequirements := Tool{
		Name:        "get_project_requirements",
		Description: "Retrieves all requirements for the current project.",
		Parameters:  schema(nil, map[string]any{}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			rows, err := db.Select(ctx,
				"SELECT description FROM requirements WHERE project_id = !p1", st.ProjectID)
			if err != nil {
				return "", err
			}
			return "These are all requirements belonging to the current project:\n" +
				strings.Join(store.Column(rows, 0), "\n"), nil
		},
	}

	getTasks := Tool{
		Name:        "get_tasks",
		Description: "Retrieves all tasks that match the specified conditions.",
		Parameters: schema(nil, map[string]any{
			"task_names":  stringListProp("Task names to match."),
			"start_dates": stringListProp("Start dates to match, formatted as YYYY-MM-DD."),
			"end_dates":   stringListProp("End dates to match, formatted as YYYY-MM-DD."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			taskNames := stringListArg(args, "task_names")

			invalid := invalidValues(taskNames, st.List("existing_tasks"))
			if len(invalid) > 0 {
				return "", apperrors.NewValidation(
					"The following tasks do not exist in the current project: %s. Please enter valid tasks.",
					strings.Join(invalid, ", "))
			}

			query := fmt.Sprintf(
				`SELECT name, description, start, "end" FROM tasks WHERE project_id = !p1%s`,
				andConditions(
					inCondition("name", taskNames),
					inCondition("start", stringListArg(args, "start_dates")),
					inCondition(`"end"`, stringListArg(args, "end_dates")),
				))

			rows, err := db.Select(ctx, query, st.ProjectID)
			if err != nil {
				return "", err
			}

			lines := make([]string, 0, len(rows))
			for _, row := range rows {
				lines = append(lines, fmt.Sprintf(
					"Task Name: %s, Task Description: %s, Start Date: %s, End Date: %s",
					store.AsString(row[0]), store.AsString(row[1]),
					store.AsString(row[2]), store.AsString(row[3])))
			}
			return "These are all tasks in the current project that match the user's request:\n" +
				strings.Join(lines, "\n"), nil
		},
	}

	getDependencies := Tool{
		Name:        "get_dependent_tasks",
		Description: "Retrieves tasks dependent on the provided one or tasks that the provided one depends on.",
		Parameters: schema(nil, map[string]any{
			"independent_task_names": stringListProp("Names of tasks that must finish first."),
			"dependent_task_names":   stringListProp("Names of tasks that depend on others."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			independent := stringListArg(args, "independent_task_names")
			dependent := stringListArg(args, "dependent_task_names")

			invalid := invalidValues(append(append([]string{}, independent...), dependent...), st.List("existing_tasks"))
			if len(invalid) > 0 {
				return "", apperrors.NewValidation(
					"The following tasks do not exist in the current project: %s. Please enter valid tasks.",
					strings.Join(invalid, ", "))
			}

			query := fmt.Sprintf(
				`SELECT itasks.name, itasks.description, dtasks.name, dtasks.description, task_dependencies.description
				FROM task_dependencies
				LEFT JOIN tasks AS itasks ON itasks.task_id = task_dependencies.task_id
				LEFT JOIN tasks AS dtasks ON dtasks.task_id = task_dependencies.dependent_id
				WHERE itasks.project_id = !p1 AND dtasks.project_id = !p1%s`,
				andConditions(
					inCondition("itasks.name", independent),
					inCondition("dtasks.name", dependent),
				))

			rows, err := db.Select(ctx, query, st.ProjectID)
			if err != nil {
				return "", err
			}

			lines := make([]string, 0, len(rows))
			for _, row := range rows {
				lines = append(lines, fmt.Sprintf(
					"Independent Task: %s (%s), Dependent Task: %s (%s), Dependency Description: %s",
					store.AsString(row[0]), store.AsString(row[1]),
					store.AsString(row[2]), store.AsString(row[3]), store.AsString(row[4])))
			}
			return "These are all task dependencies in the current project that match the user's request:\n" +
				strings.Join(lines, "\n"), nil
		},
	}

	getAllResources := Tool{
		Name:        "get_all_resources",
		Description: "Retrieves all existing resources, including those that have not been assigned to tasks.",
		Parameters:  schema(nil, map[string]any{}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			rows, err := db.Select(ctx, "SELECT first_name, last_name, contact FROM resources")
			if err != nil {
				return "", err
			}
			lines := make([]string, 0, len(rows))
			for _, row := range rows {
				lines = append(lines, fmt.Sprintf("First Name: %s, Last Name: %s, Contact: %s",
					store.AsString(row[0]), store.AsString(row[1]), store.AsString(row[2])))
			}
			return "These are all resources that have been created thus far:\n" +
				strings.Join(lines, "\n"), nil
		},
	}

	getAssignments := Tool{
		Name:        "get_resources_by_assignment",
		Description: "Retrieves all resource assignments that belong to the provided tasks and fit the provided arguments.",
		Parameters: schema(nil, map[string]any{
			"task_names":           stringListProp("Task names to match."),
			"resource_first_names": stringListProp("Resource first names to match."),
			"resource_last_names":  stringListProp("Resource last names to match."),
			"resource_contacts":    stringListProp("Resource contacts to match."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			taskNames := stringListArg(args, "task_names")

			invalid := invalidValues(taskNames, st.List("existing_tasks"))
			if len(invalid) > 0 {
				return "", apperrors.NewValidation(
					"The following tasks do not exist in the current project: %s. Please enter valid tasks.",
					strings.Join(invalid, ", "))
			}

			query := fmt.Sprintf(
				`SELECT resources.first_name, resources.last_name, resources.contact,
					tasks.name, tasks.description, tasks.start, tasks."end"
				FROM resource_assignments
				LEFT JOIN resources ON resources.resource_id = resource_assignments.resource_id
				LEFT JOIN tasks ON tasks.task_id = resource_assignments.task_id
				WHERE tasks.project_id = !p1%s`,
				andConditions(
					inCondition("tasks.name", taskNames),
					inCondition("resources.first_name", stringListArg(args, "resource_first_names")),
					inCondition("resources.last_name", stringListArg(args, "resource_last_names")),
					inCondition("resources.contact", stringListArg(args, "resource_contacts")),
				))

			rows, err := db.Select(ctx, query, st.ProjectID)
			if err != nil {
				return "", err
			}

			lines := make([]string, 0, len(rows))
			for _, row := range rows {
				lines = append(lines, fmt.Sprintf(
					"First Name: %s, Last Name: %s, Contact: %s, Task: %s, Task Description: %s, Start Date: %s, End Date: %s",
					store.AsString(row[0]), store.AsString(row[1]), store.AsString(row[2]),
					store.AsString(row[3]), store.AsString(row[4]),
					store.AsString(row[5]), store.AsString(row[6])))
			}
			return "These are all resource assignments that match the user's request:\n" +
				strings.Join(lines, "\n"), nil
		},
	}

	return &Definition{
		Kind:  "analyst",
		Label: "asking questions about/analyzing the project",
		ContextReady: func(st *State) bool {
			return st.Slot("project_name") != ""
		},
		ContextPrompt:  analystContextPrompt,
		ContextTools:   []Tool{getContext},
		DialoguePrompt: func(st *State) string { return analystDialoguePrompt },
		DialogueTools: []Tool{
			getRequirements, getTasks, getDependencies, getAllResources, getAssignments,
			finishTool("analysis dialogue"),
		},
	}
}
