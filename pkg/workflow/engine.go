package workflow

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/llm"
	"github.com/foreman-dev/foreman/pkg/session"
	"github.com/foreman-dev/foreman/pkg/store"
)

// DefaultMaxTurns bounds model invocations within one sub-workflow run
const DefaultMaxTurns = 24

// Definition carries the per-kind data driving the generic engine
type Definition struct {
	// Kind is the sub-workflow name used in the pending queue and ledger
	Kind string

	// Label is the human-readable operation label used by the suggestion step
	Label string

	// LoadContext, when set, resolves context with a direct store read
	// instead of a model dialogue
	LoadContext func(ctx context.Context, st *State, db store.Querier) error

	// ContextReady short-circuits context resolution when the identifying
	// slots already hold validated values
	ContextReady func(st *State) bool

	ContextPrompt string
	ContextTools  []Tool

	// DialoguePrompt builds the field-collection instruction from current state
	DialoguePrompt func(st *State) string
	DialogueTools  []Tool

	// Commit issues the final store write and builds the output message.
	// Analysis runs leave it nil.
	Commit func(ctx context.Context, st *State, db store.Querier) (string, error)

	// Reportable names the slots extracted into the Action Ledger entry,
	// in order. Empty means the run produces no ledger entry.
	Reportable []string
}

// Suspension is the pause marker unwound to the request boundary
type Suspension struct {
	Question string `json:"question"`
	Resume   Phase  `json:"resume"`
}

// Result is the outcome of driving a sub-workflow as far as it will go
type Result struct {
	Output     string
	Action     *session.Action
	Suspension *Suspension
}

// Engine drives sub-workflow definitions against the model and store
type Engine struct {
	model    llm.Client
	db       store.Querier
	log      logr.Logger
	maxTurns int
}

// NewEngine creates a sub-workflow engine
func NewEngine(model llm.Client, db store.Querier, log logr.Logger) *Engine {
	return &Engine{
		model:    model,
		db:       db,
		log:      log.WithName("workflow"),
		maxTurns: DefaultMaxTurns,
	}
}

// Run advances the sub-workflow until it commits or suspends. On
// suspension the caller persists st and re-enters Run after appending the
// user's answer to st.Messages.
func (e *Engine) Run(ctx context.Context, def *Definition, st *State) (*Result, error) {
	for turn := 0; turn < e.maxTurns; turn++ {
		switch st.Phase {
		case PhaseContext:
			result, err := e.runContext(ctx, def, st)
			if err != nil || result != nil {
				return result, err
			}

		case PhaseDialogue:
			result, err := e.runDialogue(ctx, def, st)
			if err != nil || result != nil {
				return result, err
			}

		case PhaseCommit:
			return e.commit(ctx, def, st)

		default:
			return nil, apperrors.New(apperrors.ErrCodeWorkflow,
				fmt.Sprintf("unknown phase %q in %s", st.Phase, def.Kind), nil)
		}
	}

	return nil, apperrors.New(apperrors.ErrCodeWorkflow,
		fmt.Sprintf("%s exceeded %d turns without committing", def.Kind, e.maxTurns), nil)
}

func (e *Engine) runContext(ctx context.Context, def *Definition, st *State) (*Result, error) {
	if def.LoadContext != nil {
		if !st.ContextLoaded {
			if err := def.LoadContext(ctx, st, e.db); err != nil {
				return nil, err
			}
			st.ContextLoaded = true
		}
		st.Phase = PhaseDialogue
		return nil, nil
	}

	if def.ContextReady != nil && def.ContextReady(st) {
		st.Phase = PhaseDialogue
		return nil, nil
	}

	resp, err := e.invoke(ctx, def.ContextPrompt, st, def.ContextTools)
	if err != nil {
		return nil, err
	}

	if len(resp.ToolCalls) > 0 {
		if err := e.runTools(ctx, def.ContextTools, st, resp.ToolCalls); err != nil {
			return nil, err
		}
		return nil, nil
	}

	st.Redirect = PhaseContext
	st.Followup = resp.Text
	return &Result{Suspension: &Suspension{Question: resp.Text, Resume: PhaseContext}}, nil
}

func (e *Engine) runDialogue(ctx context.Context, def *Definition, st *State) (*Result, error) {
	if st.Finish {
		st.Phase = PhaseCommit
		return nil, nil
	}

	resp, err := e.invoke(ctx, def.DialoguePrompt(st), st, def.DialogueTools)
	if err != nil {
		return nil, err
	}

	if len(resp.ToolCalls) > 0 {
		if err := e.runTools(ctx, def.DialogueTools, st, resp.ToolCalls); err != nil {
			return nil, err
		}
		return nil, nil
	}

	st.Redirect = PhaseDialogue
	st.Followup = resp.Text
	return &Result{Suspension: &Suspension{Question: resp.Text, Resume: PhaseDialogue}}, nil
}

func (e *Engine) commit(ctx context.Context, def *Definition, st *State) (*Result, error) {
	result := &Result{}

	if def.Commit != nil {
		output, err := def.Commit(ctx, st, e.db)
		if err != nil {
			return nil, err
		}
		result.Output = output
	} else {
		result.Output = "Finished analysis"
	}

	if len(def.Reportable) > 0 {
		params := map[string]string{}
		for _, name := range def.Reportable {
			params[name] = st.Slot(name)
		}
		result.Action = &session.Action{Name: def.Kind, Params: params}
	}

	e.log.V(1).Info("sub-workflow committed", "kind", def.Kind)
	return result, nil
}

func (e *Engine) invoke(ctx context.Context, prompt string, st *State, tools []Tool) (*llm.Response, error) {
	messages := append([]llm.Message{llm.SystemMessage(prompt)}, st.Messages...)

	resp, err := e.model.Generate(ctx, messages, &llm.GenerateConfig{Tools: toolDefinitions(tools)})
	if err != nil {
		return nil, err
	}

	st.Messages = append(st.Messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Text,
		ToolCalls: resp.ToolCalls,
	})

	return resp, nil
}

// runTools executes requested tool calls in emission order. Domain
// validation failures become tool messages so the next model turn can ask
// the user to correct them.
func (e *Engine) runTools(ctx context.Context, tools []Tool, st *State, calls []llm.ToolCall) error {
	for _, call := range calls {
		var content string

		tool, ok := toolByName(tools, call.Name)
		if !ok {
			content = fmt.Sprintf("Tool %s is not available here.", call.Name)
		} else {
			out, err := tool.Run(ctx, st, e.db, call.Arguments)
			switch {
			case err == nil:
				content = out
			case apperrors.IsValidation(err):
				e.log.V(1).Info("validation failure", "tool", call.Name, "reason", err.Error())
				content = err.Error()
			default:
				return apperrors.New(apperrors.ErrCodeToolExecution,
					fmt.Sprintf("tool %s failed", call.Name), err)
			}
		}

		st.Messages = append(st.Messages, llm.ToolMessage(content, call.ID))
	}

	return nil
}
