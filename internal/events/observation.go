package events

import "fmt"

// CommandOutput is the result of a RunCommand. CommandID is the
// sequence id of the causing action so the agent can pair output with
// the command that produced it.
type CommandOutput struct {
	CommandID int64  `json:"command_id"`
	Command   string `json:"command"`
	ExitCode  int    `json:"exit_code"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// CodeCellOutput is the result of a RunCodeCell. Content may embed
// base64 image payloads; the message assembler replaces those with a
// placeholder before the text reaches the LLM.
type CodeCellOutput struct {
	Code    string `json:"code"`
	Content string `json:"content"`
}

// DelegateOutput carries the final output of a nested agent session.
type DelegateOutput struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// BrowserOutput is the result of a browser step.
type BrowserOutput struct {
	URL     string `json:"url"`
	Content string `json:"content"`
	Error   bool   `json:"error,omitempty"`
}

// ErrorObservation records a recoverable failure so the agent sees it
// on its next turn, inline with normal execution history.
type ErrorObservation struct {
	Content string `json:"content"`
}

// NullObservation pairs with actions that produce no result.
type NullObservation struct{}

func (CommandOutput) isObservation()    {}
func (CodeCellOutput) isObservation()   {}
func (DelegateOutput) isObservation()   {}
func (BrowserOutput) isObservation()    {}
func (ErrorObservation) isObservation() {}
func (NullObservation) isObservation()  {}

func (o CommandOutput) Message() string {
	return fmt.Sprintf("Command `%s` executed with exit code %d.", o.Command, o.ExitCode)
}

func (o CodeCellOutput) Message() string { return "Code executed in interpreter cell." }

func (o DelegateOutput) Message() string {
	return fmt.Sprintf("Delegate %s finished.", o.Agent)
}

func (o BrowserOutput) Message() string {
	return fmt.Sprintf("Visited %s", o.URL)
}

func (o ErrorObservation) Message() string { return o.Content }

func (NullObservation) Message() string { return "" }
