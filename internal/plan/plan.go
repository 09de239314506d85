// Package plan holds the session's task tree. The agent edits it
// through AddTask/ModifyTask actions; malformed edits error and are
// recorded as observations rather than killing the session.
package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// Task states.
const (
	StateOpen       = "open"
	StateInProgress = "in_progress"
	StateClosed     = "closed"
	StateVerified   = "verified"
	StateAbandoned  = "abandoned"
)

var validStates = map[string]struct{}{
	StateOpen:       {},
	StateInProgress: {},
	StateClosed:     {},
	StateVerified:   {},
	StateAbandoned:  {},
}

// Task is one node of the plan tree. IDs are dotted paths: the root
// is "", its children "0", "1", ..., their children "0.0" and so on.
type Task struct {
	ID       string
	Goal     string
	State    string
	Subtasks []*Task
}

// Plan is the root goal plus its task tree.
type Plan struct {
	MainGoal string
	root     *Task
}

func New(mainGoal string) *Plan {
	return &Plan{
		MainGoal: mainGoal,
		root:     &Task{ID: "", Goal: mainGoal, State: StateOpen},
	}
}

// AddSubtask inserts a task under parent (the empty id targets the
// root), with optional leaf subtasks below it.
func (p *Plan) AddSubtask(parent, goal string, subtasks []string) error {
	node, err := p.byID(parent)
	if err != nil {
		return err
	}
	child := &Task{
		ID:    childID(node, len(node.Subtasks)),
		Goal:  goal,
		State: StateOpen,
	}
	for i, sub := range subtasks {
		child.Subtasks = append(child.Subtasks, &Task{
			ID:    childID(child, i),
			Goal:  sub,
			State: StateOpen,
		})
	}
	node.Subtasks = append(node.Subtasks, child)
	return nil
}

// SetState updates a task's state. Closing or abandoning a task
// cascades to its subtasks still open.
func (p *Plan) SetState(id, state string) error {
	if _, ok := validStates[state]; !ok {
		return fmt.Errorf("invalid task state %q", state)
	}
	node, err := p.byID(id)
	if err != nil {
		return err
	}
	node.SetState(state)
	return nil
}

func (t *Task) SetState(state string) {
	t.State = state
	if state == StateClosed || state == StateAbandoned {
		for _, sub := range t.Subtasks {
			if sub.State == StateOpen || sub.State == StateInProgress {
				sub.SetState(state)
			}
		}
	}
}

// Get returns the task with the given dotted id.
func (p *Plan) Get(id string) (*Task, error) { return p.byID(id) }

func (p *Plan) byID(id string) (*Task, error) {
	node := p.root
	if id == "" {
		return node, nil
	}
	for _, part := range strings.Split(id, ".") {
		idx, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("malformed task id %q", id)
		}
		if idx < 0 || idx >= len(node.Subtasks) {
			return nil, fmt.Errorf("no task with id %q", id)
		}
		node = node.Subtasks[idx]
	}
	return node, nil
}

func childID(parent *Task, index int) string {
	if parent.ID == "" {
		return strconv.Itoa(index)
	}
	return parent.ID + "." + strconv.Itoa(index)
}

// String renders the tree for logging and delegate task descriptions.
func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n", p.MainGoal)
	var walk func(t *Task, depth int)
	walk = func(t *Task, depth int) {
		for _, sub := range t.Subtasks {
			fmt.Fprintf(&sb, "%s[%s] %s (%s)\n", strings.Repeat("  ", depth), sub.ID, sub.Goal, sub.State)
			walk(sub, depth+1)
		}
	}
	walk(p.root, 0)
	return strings.TrimRight(sb.String(), "\n")
}
