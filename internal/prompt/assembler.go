// Package prompt projects session history into the message sequence
// sent to the LLM. The projection is pure: it never mutates history,
// and truncation or placeholder substitution only affect the
// transient view built for one step.
package prompt

import (
	"fmt"
	"strings"

	"github.com/driftworks/agentd/internal/events"
	"github.com/driftworks/agentd/internal/llm"
)

// ImagePlaceholder replaces inline base64 image payloads so binary
// data never floods the context while the agent still sees that an
// image was produced.
const ImagePlaceholder = "![image](data:image/png;base64, ...) already displayed to user"

// DefaultMaxObservationChars bounds a single observation's text in
// the message view. Applied per message, not globally.
const DefaultMaxObservationChars = 10000

// Assembler builds the ordered role/content sequence for one step.
type Assembler struct {
	SystemPrompt        string
	InContextExample    string
	MaxObservationChars int
}

func NewAssembler() *Assembler {
	return &Assembler{
		SystemPrompt:        SystemMessage(),
		InContextExample:    InContextExample(),
		MaxObservationChars: DefaultMaxObservationChars,
	}
}

// Build returns the system prompt, the in-context example, and one
// message per history record that projects to content, with the
// turns-remaining reminder appended to the latest user message.
func (a *Assembler) Build(history *events.History, turnsLeft int) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: a.SystemPrompt},
		{Role: llm.RoleUser, Content: a.InContextExample},
	}

	history.Walk(func(rec events.Record) bool {
		var msg llm.Message
		var ok bool
		if rec.Action != nil {
			msg, ok = actionMessage(rec)
		} else {
			msg, ok = a.observationMessage(rec)
		}
		if ok {
			messages = append(messages, msg)
		}
		return true
	})

	// Remind the agent of its remaining budget on the freshest user
	// turn only; older copies of the reminder would contradict it.
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			messages[i].Content += Reminder(turnsLeft)
			break
		}
	}
	return messages
}

func actionMessage(rec events.Record) (llm.Message, bool) {
	role := llm.RoleAssistant
	if rec.Source == events.SourceUser {
		role = llm.RoleUser
	}
	switch a := rec.Action.(type) {
	case events.RunCommand:
		return llm.Message{Role: role, Content: joinThought(a.Thought, "execute_bash", a.Command)}, true
	case events.RunCodeCell:
		return llm.Message{Role: role, Content: joinThought(a.Thought, "execute_ipython", a.Code)}, true
	case events.DelegateToAgent:
		return llm.Message{Role: role, Content: joinThought(a.Thought, "execute_browse", a.Task)}, true
	case events.SendMessage:
		return llm.Message{Role: role, Content: a.Content}, true
	default:
		// Finish, plan edits and null actions carry no conversational
		// content; skipping them must not break adjacency elsewhere.
		return llm.Message{}, false
	}
}

func (a *Assembler) observationMessage(rec events.Record) (llm.Message, bool) {
	budget := a.MaxObservationChars
	if budget <= 0 {
		budget = DefaultMaxObservationChars
	}
	switch o := rec.Observation.(type) {
	case events.CommandOutput:
		content := "OBSERVATION:\n" + truncate(o.Content, budget)
		content += fmt.Sprintf("\n[Command %d finished with exit code %d]", o.CommandID, o.ExitCode)
		return llm.Message{Role: llm.RoleUser, Content: content}, true
	case events.CodeCellOutput:
		content := "OBSERVATION:\n" + replaceImages(o.Content)
		return llm.Message{Role: llm.RoleUser, Content: truncate(content, budget)}, true
	case events.DelegateOutput:
		return llm.Message{Role: llm.RoleUser, Content: "OBSERVATION:\n" + truncate(o.Content, budget)}, true
	case events.BrowserOutput:
		return llm.Message{Role: llm.RoleUser, Content: "OBSERVATION:\n" + truncate(o.Content, budget)}, true
	case events.ErrorObservation:
		// Errors surface in the same channel as command output so the
		// agent can adapt on its next turn.
		return llm.Message{Role: llm.RoleUser, Content: "OBSERVATION:\n" + truncate(o.Content, budget)}, true
	default:
		return llm.Message{}, false
	}
}

func joinThought(thought, tag, body string) string {
	if thought == "" {
		return fmt.Sprintf("<%s>\n%s\n</%s>", tag, body, tag)
	}
	return fmt.Sprintf("%s\n<%s>\n%s\n</%s>", thought, tag, body, tag)
}

// truncate keeps the head and tail of over-budget content and marks
// how much was elided in between.
func truncate(content string, budget int) string {
	if len(content) <= budget {
		return content
	}
	half := budget / 2
	elided := len(content) - budget
	return content[:half] +
		fmt.Sprintf("\n[... %d characters elided: observation truncated ...]\n", elided) +
		content[len(content)-half:]
}

func replaceImages(content string) string {
	if !strings.Contains(content, "![image](data:image/png;base64,") {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.Contains(line, "![image](data:image/png;base64,") {
			lines[i] = ImagePlaceholder
		}
	}
	return strings.Join(lines, "\n")
}
