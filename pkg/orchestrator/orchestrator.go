// Package orchestrator implements the top-level conversational state
// machine: intent routing, the pending operation queue, clarification
// suspensions, sub-workflow dispatch, and the post-operation suggestion
// loop.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/llm"
	"github.com/foreman-dev/foreman/pkg/session"
	"github.com/foreman-dev/foreman/pkg/store"
	"github.com/foreman-dev/foreman/pkg/workflow"
)

// DefaultFollowupThreshold is the length in characters above which a
// classifier followup counts as a real question and suspends the turn
const DefaultFollowupThreshold = 30

// Orchestrator state labels. A turn starts at liaison and ends at done.
const (
	stateLiaison          = "liaison"
	stateSupervisor       = "supervisor"
	stateWorkflow         = "workflow"
	stateSuggestion       = "suggestion"
	stateSuggestionCommit = "suggestion_commit"
	stateDone             = "done"
)

// Resume addresses recorded on suspension. They name the state the next
// inbound message re-enters.
const (
	resumeLiaison          = stateLiaison
	resumeWorkflow         = stateWorkflow
	resumeSuggestionCommit = stateSuggestionCommit
)

// Orchestrator drives a session through the top-level state machine
type Orchestrator struct {
	model       llm.Client
	engine      *workflow.Engine
	definitions map[string]*workflow.Definition
	log         logr.Logger
	threshold   int
}

// New creates an orchestrator over the given model and store
func New(model llm.Client, db store.Querier, log logr.Logger) *Orchestrator {
	return &Orchestrator{
		model:       model,
		engine:      workflow.NewEngine(model, db, log),
		definitions: workflow.Definitions(),
		log:         log.WithName("orchestrator"),
		threshold:   DefaultFollowupThreshold,
	}
}

// turn carries the per-message working state, including the active
// sub-workflow when one is running or being resumed
type turn struct {
	sess *session.Session
	st   *workflow.State
}

// HandleMessage advances the session with one inbound user message and
// returns the reply: the pending question if the turn suspended, otherwise
// the accumulated output of the operations that ran. The caller persists
// the session afterwards.
func (o *Orchestrator) HandleMessage(ctx context.Context, sess *session.Session, text string, isFirst bool) (string, error) {
	t := &turn{sess: sess}

	state, err := o.admit(t, text, isFirst)
	if err != nil {
		return "", err
	}

	steps := map[string]func(context.Context, *turn) (string, error){
		stateLiaison:          o.runLiaison,
		stateSupervisor:       o.runSupervisor,
		stateWorkflow:         o.runWorkflow,
		stateSuggestion:       o.runSuggestion,
		stateSuggestionCommit: o.runSuggestionCommit,
	}

	for state != stateDone {
		step, ok := steps[state]
		if !ok {
			return "", apperrors.New(apperrors.ErrCodeOrchestrator,
				fmt.Sprintf("no handler for state %q", state), nil)
		}

		next, err := step(ctx, t)
		if err != nil {
			return "", err
		}
		if sess.Suspended() {
			o.log.V(1).Info("turn suspended", "thread", sess.ThreadID, "resume", sess.Resume)
			return sess.Followup, nil
		}
		state = next
	}

	o.log.V(1).Info("turn finished", "thread", sess.ThreadID)
	return sess.Output, nil
}

// admit dispatches an inbound message either to a fresh liaison pass or to
// the resume address recorded at the last suspension
func (o *Orchestrator) admit(t *turn, text string, isFirst bool) (string, error) {
	sess := t.sess

	if isFirst || !sess.Suspended() {
		sess.UserInput = text
		sess.Output = ""
		sess.Followup = ""
		sess.Resume = ""
		return stateLiaison, nil
	}

	resume := sess.Resume
	followup := sess.Followup
	sess.Followup = ""
	sess.Resume = ""

	switch resume {
	case resumeLiaison:
		// The routing question was answered with a rephrased request, so
		// the whole turn starts over
		sess.UserInput = text
		sess.Output = ""
		return stateLiaison, nil

	case resumeWorkflow:
		st := &workflow.State{}
		if err := json.Unmarshal(sess.Workflow, st); err != nil {
			return "", apperrors.New(apperrors.ErrCodeSessionLoad,
				"corrupt suspended workflow snapshot", err)
		}
		st.Messages = append(st.Messages, llm.UserMessage(text))
		st.Phase = st.Redirect
		st.Followup = ""
		t.st = st
		return stateWorkflow, nil

	case resumeSuggestionCommit:
		sess.Append(llm.AssistantMessage(followup), llm.UserMessage(text))
		return stateSuggestionCommit, nil
	}

	return "", apperrors.New(apperrors.ErrCodeUnknownAddress,
		fmt.Sprintf("session %s suspended with resume address %q", sess.ThreadID, resume), nil)
}

// runLiaison classifies the user's request into operation counts and
// builds the pending queue. An incomprehensible request suspends with the
// classifier's followup question.
func (o *Orchestrator) runLiaison(ctx context.Context, t *turn) (string, error) {
	sess := t.sess
	sess.Append(llm.UserMessage(sess.UserInput))

	c, err := o.classify(ctx, liaisonPrompt, sess.Messages)
	if err != nil {
		return "", err
	}

	sess.Queue = buildQueue(c)
	o.log.V(1).Info("request classified", "thread", sess.ThreadID, "queue", sess.Queue)

	if len(c.Followup) > o.threshold {
		sess.Append(llm.AssistantMessage(c.Followup))
		sess.Followup = c.Followup
		sess.Resume = resumeLiaison
		return "", nil
	}

	return stateSupervisor, nil
}

// runSupervisor pops the next pending operation and seeds its sub-workflow
// from the conversation history. An empty queue ends the turn.
func (o *Orchestrator) runSupervisor(ctx context.Context, t *turn) (string, error) {
	sess := t.sess

	if len(sess.Queue) == 0 {
		return stateDone, nil
	}

	kind := sess.Queue[0]
	sess.Queue = sess.Queue[1:]

	if _, ok := o.definitions[kind]; !ok {
		return "", apperrors.New(apperrors.ErrCodeOrchestrator,
			fmt.Sprintf("queued unknown sub-workflow %q", kind), nil)
	}

	t.st = workflow.NewState(kind, sess.Messages)
	return stateWorkflow, nil
}

// runWorkflow drives the active sub-workflow until it commits or suspends.
// A suspension snapshots the sub-workflow state into the session so the
// user's answer can resume it in place.
func (o *Orchestrator) runWorkflow(ctx context.Context, t *turn) (string, error) {
	sess := t.sess
	def := o.definitions[t.st.Kind]

	result, err := o.engine.Run(ctx, def, t.st)
	if err != nil {
		return "", err
	}

	if result.Suspension != nil {
		snapshot, err := json.Marshal(t.st)
		if err != nil {
			return "", apperrors.New(apperrors.ErrCodeSessionSave,
				"marshal suspended workflow snapshot", err)
		}
		sess.Workflow = snapshot
		sess.Followup = result.Suspension.Question
		sess.Resume = resumeWorkflow
		return "", nil
	}

	sess.Workflow = nil
	t.st = nil

	if result.Action != nil {
		sess.Actions = append(sess.Actions, *result.Action)
	}
	sess.Prev = def.Label
	sess.Append(llm.AssistantMessage(result.Output))
	appendOutput(sess, result.Output)

	return stateSuggestion, nil
}

// runSuggestion proposes a secondary operation after a commit. A short
// proposal is treated as no real question and the queue simply continues.
func (o *Orchestrator) runSuggestion(ctx context.Context, t *turn) (string, error) {
	sess := t.sess

	followup, err := o.suggest(ctx, sess.Prev, sess.Messages)
	if err != nil {
		return "", err
	}

	if len(followup) > o.threshold {
		sess.Followup = followup
		sess.Resume = resumeSuggestionCommit
		return "", nil
	}

	return stateSupervisor, nil
}

// runSuggestionCommit classifies the user's answer to the suggestion
// question and prepends any newly requested operations to the queue front
func (o *Orchestrator) runSuggestionCommit(ctx context.Context, t *turn) (string, error) {
	sess := t.sess

	// Only the suggestion question and its answer inform this pass
	recent := sess.Messages
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}

	c, err := o.classify(ctx, suggestCommitPrompt, recent)
	if err != nil {
		return "", err
	}

	added := buildQueue(c)
	sess.Queue = append(added, sess.Queue...)

	if len(added) > 0 {
		appendOutput(sess, "New tools added: "+strings.Join(added, ", "))
	} else {
		appendOutput(sess, "New tools added: None")
	}
	o.log.V(1).Info("suggestion answered", "thread", sess.ThreadID, "added", added)

	return stateSupervisor, nil
}

// appendOutput accumulates a sub-turn's output line into the session reply
func appendOutput(sess *session.Session, line string) {
	if sess.Output == "" {
		sess.Output = line
		return
	}
	sess.Output = sess.Output + "\n" + line
}
