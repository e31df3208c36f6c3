package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foreman-dev/foreman/pkg/llm"
	"github.com/foreman-dev/foreman/pkg/store"
)

func seedProject(t *testing.T, db *store.DB, name, desc string) {
	t.Helper()
	require.NoError(t, db.Execute(context.Background(),
		"INSERT INTO projects(name, description) VALUES(!p1, !p2)", name, desc))
}

func seedTask(t *testing.T, db *store.DB, projectID int64, name string) {
	t.Helper()
	require.NoError(t, db.Execute(context.Background(),
		`INSERT INTO tasks(project_id, name, description, start, "end") VALUES(!p1, !p2, !p3, !p4, !p5)`,
		projectID, name, "", "2026-09-01", ""))
}

func TestTaskMaker_DefaultsStartDateToToday(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "Atlas", "A mapping platform.")

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_task_context", map[string]any{"project_name": "Atlas"}),
		toolResponse("add_task", map[string]any{"task_name": "Kickoff"}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("task_maker", []llm.Message{llm.UserMessage("Add a task called Kickoff to Atlas starting today")})
	result, err := engine.Run(context.Background(), TaskMaker(), st)
	require.NoError(t, err)
	require.Nil(t, result.Suspension)

	today := time.Now().Format("2006-01-02")
	assert.Equal(t, today, result.Action.Params["start_date"])

	rows, err := db.Select(context.Background(),
		"SELECT project_id, start FROM tasks WHERE name = !p1", "Kickoff")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), store.AsInt64(rows[0][0]))
	assert.Equal(t, today, store.AsString(rows[0][1]))
}

func TestTaskMaker_RejectsDuplicateName(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "Atlas", "")
	seedTask(t, db, 1, "Design")

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_task_context", map[string]any{"project_name": "Atlas"}),
		toolResponse("add_task", map[string]any{"task_name": "Design"}),
		textResponse("A task named Design already exists. What other name would you like?"),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("task_maker", []llm.Message{llm.UserMessage("Add a task called Design to Atlas")})
	result, err := engine.Run(context.Background(), TaskMaker(), st)
	require.NoError(t, err)
	require.NotNil(t, result.Suspension)

	lastRequest := model.requests[len(model.requests)-1]
	rejection := lastRequest[len(lastRequest)-1]
	assert.Equal(t, llm.RoleTool, rejection.Role)
	assert.Contains(t, rejection.Content, "already exists")
}

func TestDependencyMaker_Commit(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "Atlas", "")
	seedTask(t, db, 1, "Design")
	seedTask(t, db, 1, "Build")

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_dependency_context", map[string]any{"task1_name": "Design", "task2_name": "Build"}),
		toolResponse("add_task_dependency", map[string]any{"description": "Building cannot begin until the design is approved."}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("dep_maker", []llm.Message{llm.UserMessage("Build depends on Design")})
	result, err := engine.Run(context.Background(), DependencyMaker(), st)
	require.NoError(t, err)
	require.Nil(t, result.Suspension)
	assert.Contains(t, result.Output, "Build dependent on task Design")

	rows, err := db.Select(context.Background(), "SELECT task_id, dependent_id FROM task_dependencies")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), store.AsInt64(rows[0][0]))
	assert.Equal(t, int64(2), store.AsInt64(rows[0][1]))
}

func TestDependencyMaker_RejectsBothMissingTasks(t *testing.T) {
	db := testDB(t)

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_dependency_context", map[string]any{"task1_name": "A", "task2_name": "B"}),
		textResponse("Neither task A nor task B exists yet. Which existing tasks should be linked?"),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("dep_maker", []llm.Message{llm.UserMessage("Make task B depend on task A")})
	result, err := engine.Run(context.Background(), DependencyMaker(), st)
	require.NoError(t, err)

	// Both invalid names are reported and the run re-asks instead of failing
	require.NotNil(t, result.Suspension)
	lastRequest := model.requests[len(model.requests)-1]
	rejection := lastRequest[len(lastRequest)-1]
	assert.Equal(t, llm.RoleTool, rejection.Role)
	assert.Contains(t, rejection.Content, "A, B")
	assert.Contains(t, rejection.Content, "do not exist")

	rows, err := db.Select(context.Background(), "SELECT COUNT(*) FROM task_dependencies")
	require.NoError(t, err)
	assert.Equal(t, int64(0), store.AsInt64(rows[0][0]))
}

func TestDependencyMaker_RejectsExistingDependencyEitherDirection(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "Atlas", "")
	seedTask(t, db, 1, "Design")
	seedTask(t, db, 1, "Build")
	require.NoError(t, db.Execute(context.Background(),
		"INSERT INTO task_dependencies(task_id, dependent_id, description) VALUES(!p1, !p2, !p3)", 2, 1, ""))

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_dependency_context", map[string]any{"task1_name": "Design", "task2_name": "Build"}),
		textResponse("Those tasks already share a dependency. Which other tasks should be linked?"),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("dep_maker", []llm.Message{llm.UserMessage("Build depends on Design")})
	result, err := engine.Run(context.Background(), DependencyMaker(), st)
	require.NoError(t, err)
	require.NotNil(t, result.Suspension)

	lastRequest := model.requests[len(model.requests)-1]
	rejection := lastRequest[len(lastRequest)-1]
	assert.Contains(t, rejection.Content, "already exists between tasks")
}

func TestResourceMaker_RejectsDuplicateContact(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Execute(context.Background(),
		"INSERT INTO resources(first_name, last_name, contact) VALUES(!p1, !p2, !p3)",
		"Ada", "Lovelace", "ada@example.com"))

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("add_resource", map[string]any{"first_name": "Ada", "contact": "ada@example.com"}),
		textResponse("That contact is already registered. What other contact should I use?"),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("resource_maker", []llm.Message{llm.UserMessage("Add Ada, contact ada@example.com")})
	result, err := engine.Run(context.Background(), ResourceMaker(), st)
	require.NoError(t, err)
	require.NotNil(t, result.Suspension)

	lastRequest := model.requests[len(model.requests)-1]
	rejection := lastRequest[len(lastRequest)-1]
	assert.Contains(t, rejection.Content, "already exists")
}

func TestResourceAssigner_ListsMatchingResources(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "Atlas", "")
	seedTask(t, db, 1, "Design")
	for _, contact := range []string{"ada1@example.com", "ada2@example.com"} {
		require.NoError(t, db.Execute(context.Background(),
			"INSERT INTO resources(first_name, last_name, contact) VALUES(!p1, !p2, !p3)",
			"Ada", "Lovelace", contact))
	}

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_resource_assignment_context", map[string]any{"first_name": "Ada", "last_name": "Lovelace"}),
		textResponse("Two resources named Ada Lovelace exist. Which contact is the right one?"),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("resource_assigner", []llm.Message{llm.UserMessage("Assign Ada Lovelace to Design")})
	result, err := engine.Run(context.Background(), ResourceAssigner(), st)
	require.NoError(t, err)
	require.NotNil(t, result.Suspension)
	require.Len(t, st.Matches, 2)

	// The dialogue instruction lists every candidate's contact
	lastRequest := model.requests[len(model.requests)-1]
	prompt := lastRequest[0]
	assert.Equal(t, llm.RoleSystem, prompt.Role)
	assert.Contains(t, prompt.Content, "ada1@example.com")
	assert.Contains(t, prompt.Content, "ada2@example.com")
}

func TestResourceAssigner_FinishWithoutAssignFailsCleanly(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "Atlas", "")
	seedTask(t, db, 1, "Design")
	require.NoError(t, db.Execute(context.Background(),
		"INSERT INTO resources(first_name, last_name, contact) VALUES(!p1, !p2, !p3)",
		"Ada", "Lovelace", "ada@example.com"))

	// Finishing the dialogue without a confirmed assignment leaves both
	// slots empty; the commit must report that instead of panicking
	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_resource_assignment_context", map[string]any{"first_name": "Ada", "last_name": "Lovelace"}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("resource_assigner", []llm.Message{llm.UserMessage("Assign Ada Lovelace to Design")})
	result, err := engine.Run(context.Background(), ResourceAssigner(), st)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "without a confirmed task")

	rows, err := db.Select(context.Background(), "SELECT COUNT(*) FROM resource_assignments")
	require.NoError(t, err)
	assert.Equal(t, int64(0), store.AsInt64(rows[0][0]))
}

func TestResourceAssigner_Commit(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "Atlas", "")
	seedTask(t, db, 1, "Design")
	require.NoError(t, db.Execute(context.Background(),
		"INSERT INTO resources(first_name, last_name, contact) VALUES(!p1, !p2, !p3)",
		"Ada", "Lovelace", "ada@example.com"))

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_resource_assignment_context", map[string]any{"first_name": "Ada", "last_name": "Lovelace"}),
		toolResponse("assign_resource", map[string]any{"task_name": "Design", "resource_contact": "ada@example.com"}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("resource_assigner", []llm.Message{llm.UserMessage("Assign Ada Lovelace to Design")})
	result, err := engine.Run(context.Background(), ResourceAssigner(), st)
	require.NoError(t, err)
	require.Nil(t, result.Suspension)

	require.NotNil(t, result.Action)
	assert.Equal(t, "Design", result.Action.Params["task_name"])
	assert.Equal(t, "ada@example.com", result.Action.Params["re_contact"])

	rows, err := db.Select(context.Background(), "SELECT task_id, resource_id FROM resource_assignments")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestAnalyst_ReadsWithoutLedgerEntry(t *testing.T) {
	db := testDB(t)
	seedProject(t, db, "Atlas", "A mapping platform.")
	require.NoError(t, db.Execute(context.Background(),
		"INSERT INTO requirements(project_id, description) VALUES(!p1, !p2)",
		1, "The system must render maps offline."))

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("get_analysis_context", map[string]any{"project_name": "Atlas"}),
		toolResponse("get_project_requirements", map[string]any{}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("analyst", []llm.Message{llm.UserMessage("What are the requirements of Atlas?")})
	result, err := engine.Run(context.Background(), Analyst(), st)
	require.NoError(t, err)

	require.Nil(t, result.Suspension)
	assert.Equal(t, "Finished analysis", result.Output)
	assert.Nil(t, result.Action)

	// The requirement text was surfaced to the model as a tool message
	lastRequest := model.requests[len(model.requests)-1]
	reply := lastRequest[len(lastRequest)-1]
	assert.Contains(t, reply.Content, "render maps offline")
}
