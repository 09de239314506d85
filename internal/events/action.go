package events

import "fmt"

// RunCommand executes a shell command in the session sandbox. A Step
// annotation, when present, links the command to a plan step.
type RunCommand struct {
	Command string `json:"command"`
	Thought string `json:"thought,omitempty"`
	Step    int    `json:"step,omitempty"`
	// Background marks commands dispatched without waiting for
	// completion; their output is drained on later iterations.
	Background bool `json:"background,omitempty"`
}

// RunCodeCell executes code in the session's interpreter kernel.
type RunCodeCell struct {
	Code    string `json:"code"`
	Thought string `json:"thought,omitempty"`
	Step    int    `json:"step,omitempty"`
}

// DelegateToAgent hands a sub-task to a nested agent session and
// waits for its final output.
type DelegateToAgent struct {
	Agent   string `json:"agent"`
	Task    string `json:"task"`
	Thought string `json:"thought,omitempty"`
	Step    int    `json:"step,omitempty"`
}

// SendMessage is conversational content addressed to the other party.
// WaitForResponse pauses the session until the user replies.
type SendMessage struct {
	Content         string `json:"content"`
	WaitForResponse bool   `json:"wait_for_response,omitempty"`
}

// FinishTask ends the session successfully.
type FinishTask struct {
	Thought string `json:"thought,omitempty"`
}

// AddTask inserts a subtask under Parent ("" means the root goal).
type AddTask struct {
	Parent   string   `json:"parent"`
	Goal     string   `json:"goal"`
	Subtasks []string `json:"subtasks,omitempty"`
	Thought  string   `json:"thought,omitempty"`
}

// ModifyTask sets the state of an existing plan task.
type ModifyTask struct {
	TaskID  string `json:"task_id"`
	State   string `json:"state"`
	Thought string `json:"thought,omitempty"`
}

// NullAction is recorded as the cause of observations that no agent
// action produced, such as drained background output.
type NullAction struct{}

func (RunCommand) isAction()      {}
func (RunCodeCell) isAction()     {}
func (DelegateToAgent) isAction() {}
func (SendMessage) isAction()     {}
func (FinishTask) isAction()      {}
func (AddTask) isAction()         {}
func (ModifyTask) isAction()      {}
func (NullAction) isAction()      {}

func (a RunCommand) Message() string {
	return fmt.Sprintf("Running command: %s", a.Command)
}

func (a RunCodeCell) Message() string {
	return fmt.Sprintf("Running code cell:\n%s", a.Code)
}

func (a DelegateToAgent) Message() string {
	return fmt.Sprintf("Delegating to %s: %s", a.Agent, a.Task)
}

func (a SendMessage) Message() string { return a.Content }

func (a FinishTask) Message() string {
	if a.Thought != "" {
		return a.Thought
	}
	return "All done! What's next on the agenda?"
}

func (a AddTask) Message() string {
	return fmt.Sprintf("Added task: %s", a.Goal)
}

func (a ModifyTask) Message() string {
	return fmt.Sprintf("Set task %s to %s", a.TaskID, a.State)
}

func (NullAction) Message() string { return "" }
