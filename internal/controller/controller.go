// Package controller drives the agent loop for one session: it asks
// the agent for the next action, dispatches executable actions to
// collaborators, records the resulting observations, and owns the
// session state machine.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/driftworks/agentd/internal/agent"
	"github.com/driftworks/agentd/internal/eventbus"
	"github.com/driftworks/agentd/internal/events"
	"github.com/driftworks/agentd/internal/llm"
	"github.com/driftworks/agentd/internal/plan"
	"github.com/driftworks/agentd/internal/state"
)

type State string

const (
	StateInit          State = "INIT"
	StateRunning       State = "RUNNING"
	StatePaused        State = "PAUSED"
	StateAwaitingInput State = "AWAITING_USER_INPUT"
	StateStopped       State = "STOPPED"
	StateFinished      State = "FINISHED"
	StateRejected      State = "REJECTED"
	StateError         State = "ERROR"
)

const (
	DefaultMaxIterations = 100
	DefaultMaxChars      = 5_000_000
)

var (
	// ErrMaxChars fires when cumulative recorded content exceeds the
	// configured ceiling. It is fatal: context growth is unbounded at
	// that point and continuing only burns tokens.
	ErrMaxChars = errors.New("maximum character budget exceeded")

	// ErrNoAction means the agent returned neither an action nor an
	// error, which indicates misconfiguration rather than runtime
	// noise.
	ErrNoAction = errors.New("agent produced no action")
)

// ResumeMessage is injected as a user turn when a persisted session
// is picked back up.
const ResumeMessage = "Let's get back on track. If you experienced errors before, do NOT resume your task. Ask me about it."

// Stepper produces the next action given the session history.
type Stepper interface {
	Step(ctx context.Context, history *events.History, turnsLeft int) (events.Action, error)
}

// CommandRunner executes shell commands. Background commands are
// dispatched without blocking and surface later via DrainBackground.
type CommandRunner interface {
	Run(ctx context.Context, action events.RunCommand) events.CommandOutput
	DrainBackground() []events.CommandOutput
}

// CellExecutor runs interpreter code cells.
type CellExecutor interface {
	Run(ctx context.Context, action events.RunCodeCell) events.CodeCellOutput
}

// Delegator runs a nested session for another agent and returns its
// final output.
type Delegator interface {
	Delegate(ctx context.Context, agentName, task string) (events.DelegateOutput, error)
}

// Callback observes every recorded event. Callbacks run in
// registration order; an action's callback always completes before
// its observation's, and both before the next iteration.
type Callback func(ctx context.Context, rec events.Record) error

type Controller struct {
	ID    string
	Agent Stepper

	Commands CommandRunner
	Cells    CellExecutor
	Delegate Delegator

	Bus   *eventbus.Bus
	Store *state.Store

	MaxIterations int
	MaxChars      int64
	Callbacks     []Callback
	Log           *slog.Logger

	mu        sync.Mutex
	history   *events.History
	plan      *plan.Plan
	st        State
	iteration int
	requested State
	task      string
	agentName string
}

func New(id, agentName string, stepper Stepper, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		ID:            id,
		Agent:         stepper,
		MaxIterations: DefaultMaxIterations,
		MaxChars:      DefaultMaxChars,
		Log:           log,
		history:       events.NewHistory(),
		st:            StateInit,
		agentName:     agentName,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// History returns the session history. The controller is its only
// writer; callers must treat it as read-only.
func (c *Controller) History() *events.History { return c.history }

// Plan returns the session's task tree, nil before Start.
func (c *Controller) Plan() *plan.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// RequestPause asks the loop to pause after the current iteration.
func (c *Controller) RequestPause() { c.request(StatePaused) }

// RequestStop asks the loop to stop after the current iteration.
func (c *Controller) RequestStop() { c.request(StateStopped) }

// RequestReject marks the session rejected; the loop honors it at the
// next iteration boundary like any other external transition request.
func (c *Controller) RequestReject() { c.request(StateRejected) }

func (c *Controller) request(s State) {
	c.mu.Lock()
	c.requested = s
	c.mu.Unlock()
}

// Start begins a fresh session on the given task.
func (c *Controller) Start(ctx context.Context, task string) error {
	c.mu.Lock()
	if c.st != StateInit {
		c.mu.Unlock()
		return fmt.Errorf("session already started (state %s)", c.st)
	}
	c.task = task
	c.plan = plan.New(task)
	c.mu.Unlock()

	seq := c.history.AppendAction(events.SendMessage{Content: task}, events.SourceUser)
	c.notify(ctx, c.recordAt(seq))

	c.setState(ctx, StateRunning)
	return c.run(ctx)
}

// Restore loads a persisted session into the controller. The next
// Resume call continues from the saved iteration.
func (c *Controller) Restore(ctx context.Context) error {
	if c.Store == nil {
		return fmt.Errorf("no session store configured")
	}
	sess, err := c.Store.Load(ctx, c.ID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.history = events.RestoreHistory(sess.Records)
	c.iteration = sess.Iteration
	c.task = sess.Task
	c.plan = plan.New(sess.Task)
	c.st = StatePaused
	c.mu.Unlock()
	return nil
}

// Resume re-enters the loop from the saved iteration, reminding the
// agent that the session was interrupted.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if c.st != StatePaused && c.st != StateAwaitingInput {
		c.mu.Unlock()
		return fmt.Errorf("session not resumable (state %s)", c.st)
	}
	c.mu.Unlock()

	seq := c.history.AppendAction(events.SendMessage{Content: ResumeMessage}, events.SourceUser)
	c.notify(ctx, c.recordAt(seq))

	c.setState(ctx, StateRunning)
	return c.run(ctx)
}

// AddUserMessage records a user reply while the session awaits input.
func (c *Controller) AddUserMessage(ctx context.Context, content string) {
	seq := c.history.AppendAction(events.SendMessage{Content: content}, events.SourceUser)
	c.notify(ctx, c.recordAt(seq))
}

func (c *Controller) run(ctx context.Context) error {
	for c.iteration < c.MaxIterations {
		if err := ctx.Err(); err != nil {
			c.setState(ctx, StatePaused)
			c.persist(context.WithoutCancel(ctx))
			return err
		}
		if req := c.takeRequest(); req != "" {
			c.setState(ctx, req)
			c.persist(ctx)
			return nil
		}

		done, err := c.step(ctx)
		if err != nil {
			c.setState(ctx, StateError)
			c.persist(context.WithoutCancel(ctx))
			return err
		}
		c.iteration++
		c.persist(ctx)
		if done {
			return nil
		}
	}

	c.Log.Info("iteration ceiling reached", "session", c.ID, "iterations", c.iteration)
	c.setState(ctx, StateStopped)
	c.persist(ctx)
	return nil
}

// step runs one iteration. It returns true when the session reached a
// resting state (finished or awaiting input).
func (c *Controller) step(ctx context.Context) (bool, error) {
	c.Log.Debug("step", "session", c.ID, "iteration", c.iteration, "chars", c.history.Chars())

	if c.Commands != nil {
		for _, obs := range c.Commands.DrainBackground() {
			seq := c.history.AppendObservation(obs, 0)
			c.notify(ctx, c.recordAt(seq))
		}
	}

	if c.history.Chars() > c.MaxChars {
		return false, fmt.Errorf("%w: %d > %d", ErrMaxChars, c.history.Chars(), c.MaxChars)
	}

	action, err := c.Agent.Step(ctx, c.history, c.MaxIterations-c.iteration)
	if err != nil {
		if errors.Is(err, llm.ErrAuthentication) {
			return false, err
		}
		c.Log.Error("agent step failed", "session", c.ID, "error", err)
		seq := c.history.AppendObservation(events.ErrorObservation{Content: err.Error()}, 0)
		c.notify(ctx, c.recordAt(seq))
		if errors.Is(err, agent.ErrContextWindowLimit) {
			return false, err
		}
		return false, nil
	}
	if action == nil {
		return false, ErrNoAction
	}

	actionSeq := c.history.AppendAction(action, events.SourceAgent)
	c.notify(ctx, c.recordAt(actionSeq))

	if _, ok := action.(events.FinishTask); ok {
		c.setState(ctx, StateFinished)
		return true, nil
	}

	observation := c.apply(ctx, action, actionSeq)

	if observation != nil {
		obsSeq := c.history.AppendObservation(observation, actionSeq)
		c.notify(ctx, c.recordAt(obsSeq))
	}

	if msg, ok := action.(events.SendMessage); ok && msg.WaitForResponse {
		c.setState(ctx, StateAwaitingInput)
		return true, nil
	}
	return false, nil
}

// apply handles plan mutations and dispatches executable actions,
// returning the resulting observation or nil when the action produces
// none. Collaborator failures become error observations so the agent
// can react on its next step.
func (c *Controller) apply(ctx context.Context, action events.Action, seq int64) events.Observation {
	switch a := action.(type) {
	case events.AddTask:
		if err := c.plan.AddSubtask(a.Parent, a.Goal, a.Subtasks); err != nil {
			return events.ErrorObservation{Content: err.Error()}
		}
		return nil
	case events.ModifyTask:
		if err := c.plan.SetState(a.TaskID, a.State); err != nil {
			return events.ErrorObservation{Content: err.Error()}
		}
		return nil
	}
	if !events.Executable(action) {
		return nil
	}
	return c.dispatch(ctx, action, seq)
}

func (c *Controller) dispatch(ctx context.Context, action events.Action, seq int64) events.Observation {
	switch a := action.(type) {
	case events.RunCommand:
		if c.Commands == nil {
			return events.ErrorObservation{Content: "no command runner configured"}
		}
		obs := c.Commands.Run(ctx, a)
		if obs.CommandID == 0 {
			obs.CommandID = seq
		}
		return obs
	case events.RunCodeCell:
		if c.Cells == nil {
			return events.ErrorObservation{Content: "no code cell runner configured"}
		}
		return c.Cells.Run(ctx, a)
	case events.DelegateToAgent:
		if c.Delegate == nil {
			return events.ErrorObservation{Content: "no delegate runner configured"}
		}
		obs, err := c.Delegate.Delegate(ctx, a.Agent, a.Task)
		if err != nil {
			return events.ErrorObservation{Content: err.Error()}
		}
		return obs
	default:
		return nil
	}
}

func (c *Controller) takeRequest() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	req := c.requested
	c.requested = ""
	return req
}

func (c *Controller) setState(ctx context.Context, s State) {
	c.mu.Lock()
	prev := c.st
	c.st = s
	c.mu.Unlock()
	if prev == s {
		return
	}
	c.Log.Info("state changed", "session", c.ID, "from", prev, "to", s)
	if c.Bus != nil {
		_, err := c.Bus.Push(ctx, eventbus.EventInput{
			Stream:    eventbus.StreamState,
			SessionID: c.ID,
			Subject:   string(s),
			Body:      fmt.Sprintf("%s -> %s", prev, s),
		})
		if err != nil {
			c.Log.Error("publish state change", "session", c.ID, "error", err)
		}
	}
}

func (c *Controller) recordAt(seq int64) events.Record {
	var out events.Record
	c.history.WalkBack(func(r events.Record) bool {
		if r.Seq == seq {
			out = r
			return false
		}
		return true
	})
	return out
}

// notify publishes the record to the bus and runs every callback in
// order. Callback failures are logged and swallowed so a misbehaving
// subscriber cannot stop the loop; after dispatch the loop yields to
// the scheduler so concurrent subscribers get a chance to run.
func (c *Controller) notify(ctx context.Context, rec events.Record) {
	if c.Bus != nil {
		stream := eventbus.StreamActions
		body := ""
		if rec.IsAction() {
			body = rec.Action.Message()
		} else {
			stream = eventbus.StreamObservations
			body = rec.Observation.Message()
		}
		_, err := c.Bus.Push(ctx, eventbus.EventInput{
			Stream:    stream,
			SessionID: c.ID,
			Subject:   rec.Kind(),
			Body:      body,
			Payload:   map[string]any{"seq": rec.Seq},
		})
		if err != nil {
			c.Log.Error("publish event", "session", c.ID, "error", err)
		}
	}
	for i, cb := range c.Callbacks {
		c.invoke(ctx, i, cb, rec)
	}
	runtime.Gosched()
}

func (c *Controller) invoke(ctx context.Context, idx int, cb Callback, rec events.Record) {
	defer func() {
		if r := recover(); r != nil {
			c.Log.Error("callback panicked", "session", c.ID, "callback", idx, "panic", r)
		}
	}()
	if err := cb(ctx, rec); err != nil {
		c.Log.Error("callback failed", "session", c.ID, "callback", idx, "error", err)
	}
}

func (c *Controller) persist(ctx context.Context) {
	if c.Store == nil {
		return
	}
	c.mu.Lock()
	sess := state.Session{
		ID:        c.ID,
		Agent:     c.agentName,
		Task:      c.task,
		State:     string(c.st),
		Iteration: c.iteration,
		Records:   c.history.Records(),
	}
	c.mu.Unlock()
	if err := c.Store.Save(ctx, sess); err != nil {
		c.Log.Error("persist session", "session", c.ID, "error", err)
	}
}
