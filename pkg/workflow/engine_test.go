package workflow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foreman-dev/foreman/pkg/llm"
	"github.com/foreman-dev/foreman/pkg/store"
)

// scriptedModel replays canned responses in order and records every request
type scriptedModel struct {
	t        *testing.T
	script   []llm.Response
	calls    int
	requests [][]llm.Message
}

func (m *scriptedModel) Generate(ctx context.Context, messages []llm.Message, config *llm.GenerateConfig) (*llm.Response, error) {
	m.requests = append(m.requests, messages)
	if m.calls >= len(m.script) {
		m.t.Fatalf("model called %d times but script has %d responses", m.calls+1, len(m.script))
	}
	resp := m.script[m.calls]
	m.calls++
	return &resp, nil
}

func (m *scriptedModel) ModelName() string { return "scripted" }

func textResponse(text string) llm.Response {
	return llm.Response{Text: text}
}

func toolResponse(name string, args map[string]any) llm.Response {
	return llm.Response{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: name, Arguments: args}}}
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "foreman.db"))
	require.NoError(t, err)
	return db
}

func newTestEngine(t *testing.T, model llm.Client, db store.Querier) *Engine {
	t.Helper()
	return NewEngine(model, db, logr.Discard())
}

func TestEngine_ProjectCommit(t *testing.T) {
	db := testDB(t)
	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("add_project", map[string]any{"name": "Atlas", "description": "A mapping platform."}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("project_maker", []llm.Message{llm.UserMessage("I want to make a project called Atlas, a mapping platform")})
	result, err := engine.Run(context.Background(), ProjectMaker(), st)
	require.NoError(t, err)

	require.Nil(t, result.Suspension)
	assert.Contains(t, result.Output, "Atlas")

	require.NotNil(t, result.Action)
	assert.Equal(t, "project_maker", result.Action.Name)
	assert.Equal(t, "Atlas", result.Action.Params["project_name"])
	assert.Equal(t, "A mapping platform.", result.Action.Params["project_desc"])

	rows, err := db.Select(context.Background(), "SELECT name FROM projects")
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlas"}, store.Column(rows, 0))
}

func TestEngine_SuspendsOnDialogueQuestion(t *testing.T) {
	db := testDB(t)
	question := "What would you like to name the new project?"
	model := &scriptedModel{t: t, script: []llm.Response{textResponse(question)}}
	engine := newTestEngine(t, model, db)

	st := NewState("project_maker", []llm.Message{llm.UserMessage("I want to make a new project")})
	result, err := engine.Run(context.Background(), ProjectMaker(), st)
	require.NoError(t, err)

	require.NotNil(t, result.Suspension)
	assert.Equal(t, question, result.Suspension.Question)
	assert.Equal(t, PhaseDialogue, result.Suspension.Resume)
	assert.Equal(t, PhaseDialogue, st.Redirect)
}

func TestEngine_ResumeContinuesDialogue(t *testing.T) {
	db := testDB(t)
	model := &scriptedModel{t: t, script: []llm.Response{
		textResponse("What would you like to name the new project?"),
		toolResponse("add_project", map[string]any{"name": "Atlas"}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, db)
	def := ProjectMaker()

	st := NewState("project_maker", []llm.Message{llm.UserMessage("I want to make a new project")})
	result, err := engine.Run(context.Background(), def, st)
	require.NoError(t, err)
	require.NotNil(t, result.Suspension)

	// The user answers and the run re-enters the suspended phase
	st.Messages = append(st.Messages, llm.UserMessage("Call it Atlas"))
	st.Phase = st.Redirect

	result, err = engine.Run(context.Background(), def, st)
	require.NoError(t, err)
	require.Nil(t, result.Suspension)
	assert.Contains(t, result.Output, "Atlas")
}

func TestEngine_ResumeDoesNotReloadContext(t *testing.T) {
	db := testDB(t)
	counted := &countingQuerier{inner: db}
	model := &scriptedModel{t: t, script: []llm.Response{
		textResponse("What would you like to name the new project?"),
		toolResponse("add_project", map[string]any{"name": "Atlas"}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, counted)
	def := ProjectMaker()

	st := NewState("project_maker", []llm.Message{llm.UserMessage("I want to make a new project")})
	_, err := engine.Run(context.Background(), def, st)
	require.NoError(t, err)
	require.True(t, st.ContextLoaded)
	selectsAfterFirst := counted.selects

	st.Messages = append(st.Messages, llm.UserMessage("Call it Atlas"))
	st.Phase = st.Redirect
	_, err = engine.Run(context.Background(), def, st)
	require.NoError(t, err)

	// Only the commit touched the store on re-entry
	assert.Equal(t, selectsAfterFirst, counted.selects)
}

func TestEngine_ValidationFeedsBackIntoDialogue(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Execute(context.Background(),
		"INSERT INTO projects(name, description) VALUES(!p1, !p2)", "Atlas", ""))

	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("add_project", map[string]any{"name": "Atlas"}),
		textResponse("A project named Atlas already exists. What other name would you like?"),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("project_maker", []llm.Message{llm.UserMessage("Make a project called Atlas")})
	result, err := engine.Run(context.Background(), ProjectMaker(), st)
	require.NoError(t, err)

	// The rejection was surfaced to the model as a tool message, not an error
	require.NotNil(t, result.Suspension)
	lastRequest := model.requests[len(model.requests)-1]
	rejection := lastRequest[len(lastRequest)-1]
	assert.Equal(t, llm.RoleTool, rejection.Role)
	assert.Contains(t, rejection.Content, "already exists")

	// Nothing was committed
	rows, err := db.Select(context.Background(), "SELECT name FROM projects")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEngine_ContextSuspension(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Execute(context.Background(),
		"INSERT INTO projects(name, description) VALUES(!p1, !p2)", "Atlas", "A mapping platform."))

	question := "Which project does this requirement belong to?"
	model := &scriptedModel{t: t, script: []llm.Response{
		textResponse(question),
		toolResponse("get_requirement_context", map[string]any{"project_name": "Atlas"}),
		toolResponse("add_requirement", map[string]any{"description": "The system must render maps offline."}),
		toolResponse("finish_execution", map[string]any{}),
	}}
	engine := newTestEngine(t, model, db)
	def := RequirementMaker()

	st := NewState("req_maker", []llm.Message{llm.UserMessage("Add a requirement")})
	result, err := engine.Run(context.Background(), def, st)
	require.NoError(t, err)
	require.NotNil(t, result.Suspension)
	assert.Equal(t, PhaseContext, result.Suspension.Resume)

	st.Messages = append(st.Messages, llm.UserMessage("It belongs to Atlas"))
	st.Phase = st.Redirect

	result, err = engine.Run(context.Background(), def, st)
	require.NoError(t, err)
	require.Nil(t, result.Suspension)
	assert.Contains(t, result.Output, "Atlas")

	rows, err := db.Select(context.Background(), "SELECT description FROM requirements")
	require.NoError(t, err)
	assert.Equal(t, []string{"The system must render maps offline."}, store.Column(rows, 0))
}

func TestEngine_UnknownToolIsReported(t *testing.T) {
	db := testDB(t)
	model := &scriptedModel{t: t, script: []llm.Response{
		toolResponse("delete_everything", map[string]any{}),
		textResponse("I can only help with creating a project here. What should it be called?"),
	}}
	engine := newTestEngine(t, model, db)

	st := NewState("project_maker", []llm.Message{llm.UserMessage("Make a project")})
	result, err := engine.Run(context.Background(), ProjectMaker(), st)
	require.NoError(t, err)
	require.NotNil(t, result.Suspension)

	lastRequest := model.requests[len(model.requests)-1]
	reply := lastRequest[len(lastRequest)-1]
	assert.Equal(t, llm.RoleTool, reply.Role)
	assert.Contains(t, reply.Content, "not available")
}

func TestEngine_TurnLimit(t *testing.T) {
	db := testDB(t)

	// A model that loops on the same tool forever never commits
	script := make([]llm.Response, DefaultMaxTurns+1)
	for i := range script {
		script[i] = toolResponse("add_project", map[string]any{"name": "Atlas"})
	}
	model := &scriptedModel{t: t, script: script}
	engine := newTestEngine(t, model, db)

	st := NewState("project_maker", []llm.Message{llm.UserMessage("Make a project")})
	_, err := engine.Run(context.Background(), ProjectMaker(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")
}

// countingQuerier counts store reads passing through it
type countingQuerier struct {
	inner   store.Querier
	selects int
}

func (c *countingQuerier) Select(ctx context.Context, query string, args ...any) ([][]any, error) {
	c.selects++
	return c.inner.Select(ctx, query, args...)
}

func (c *countingQuerier) Execute(ctx context.Context, query string, args ...any) error {
	return c.inner.Execute(ctx, query, args...)
}
