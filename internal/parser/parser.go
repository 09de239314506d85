// Package parser turns raw LLM response text into a typed action.
//
// The response protocol is plain text with delimiter pairs such as
// <execute_bash>...</execute_bash>. Matchers are tried in a fixed
// priority order and the first match wins; free text outside any
// delimiter becomes conversational message content.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/driftworks/agentd/internal/events"
)

// Matcher recognizes one action delimiter. Matchers are stateless;
// Extract is only called after Matches reports true.
type Matcher interface {
	Matches(text string) bool
	Extract(text string) (events.Action, error)
}

// autoCloseTags lists delimiters completed when the model output was
// cut off before the closing tag.
var autoCloseTags = []string{
	"execute_bash",
	"execute_ipython",
	"execute_browse",
	"execute_delegate",
	"save_plan",
	"plan_step",
	"finish",
}

// ResponseParser applies the prioritized matcher list. The order is
// part of the wire contract with existing prompts: finish beats
// command beats code cell beats browse/delegate beats plan tags, and
// anything else is a message to the user.
type ResponseParser struct {
	matchers []Matcher
	fallback Matcher
}

func NewResponseParser() *ResponseParser {
	return &ResponseParser{
		matchers: []Matcher{
			finishMatcher{},
			commandMatcher{},
			codeCellMatcher{},
			browseMatcher{},
			delegateMatcher{},
			savePlanMatcher{},
			planStepMatcher{},
		},
		fallback: messageMatcher{},
	}
}

// StopSequences returns the closing delimiters handed to the LLM as
// stop strings so the model cannot run past an action into fabricated
// observations.
func StopSequences() []string {
	return []string{"</execute_bash>", "</execute_ipython>", "</execute_browse>", "</execute_delegate>"}
}

func (p *ResponseParser) Parse(raw string) (events.Action, error) {
	text := completeClosingTags(raw)
	for _, m := range p.matchers {
		if m.Matches(text) {
			return m.Extract(text)
		}
	}
	return p.fallback.Extract(text)
}

func completeClosingTags(text string) string {
	for _, tag := range autoCloseTags {
		open := "<" + tag + ">"
		close := "</" + tag + ">"
		if strings.Contains(text, open) && !strings.Contains(text, close) {
			text += close
		}
	}
	return text
}

var (
	finishRe   = regexp.MustCompile(`(?s)<finish>.*?</finish>`)
	bashRe     = regexp.MustCompile(`(?s)<execute_bash>(.*?)</execute_bash>`)
	ipythonRe  = regexp.MustCompile(`(?s)<execute_ipython>(.*?)</execute_ipython>`)
	browseRe   = regexp.MustCompile(`(?s)<execute_browse>(.*?)</execute_browse>`)
	delegateRe = regexp.MustCompile(`(?s)<execute_delegate>(.*?)</execute_delegate>`)
	savePlanRe = regexp.MustCompile(`(?s)<save_plan>(.*?)</save_plan>`)
	planStepRe = regexp.MustCompile(`(?s)<plan_step>(.*?)</plan_step>`)
)

// planStep extracts the optional integer step annotation. A present
// but malformed annotation is a hard parse error, never a silent
// default. The annotation text is also stripped from the thought.
func planStep(text, thought string) (int, string, error) {
	loc := planStepRe.FindStringSubmatch(text)
	if loc == nil {
		return 0, thought, nil
	}
	thought = strings.TrimSpace(strings.Replace(thought, loc[0], "", 1))
	step, err := strconv.Atoi(strings.TrimSpace(loc[1]))
	if err != nil {
		return 0, thought, fmt.Errorf("malformed plan step annotation %q: %w", strings.TrimSpace(loc[1]), err)
	}
	return step, thought, nil
}

type finishMatcher struct{}

func (finishMatcher) Matches(text string) bool { return finishRe.MatchString(text) }

func (finishMatcher) Extract(text string) (events.Action, error) {
	match := finishRe.FindString(text)
	thought := strings.TrimSpace(strings.Replace(text, match, "", 1))
	return events.FinishTask{Thought: thought}, nil
}

type commandMatcher struct{}

func (commandMatcher) Matches(text string) bool { return bashRe.MatchString(text) }

func (commandMatcher) Extract(text string) (events.Action, error) {
	match := bashRe.FindStringSubmatch(text)
	thought := strings.TrimSpace(strings.Replace(text, match[0], "", 1))
	command := strings.TrimSpace(match[1])
	// "exit" is the agent-driven escape hatch, not a real command.
	if command == "exit" {
		return events.FinishTask{}, nil
	}
	step, thought, err := planStep(text, thought)
	if err != nil {
		return nil, err
	}
	background := strings.HasSuffix(command, "&")
	return events.RunCommand{Command: command, Thought: thought, Step: step, Background: background}, nil
}

type codeCellMatcher struct{}

func (codeCellMatcher) Matches(text string) bool { return ipythonRe.MatchString(text) }

func (codeCellMatcher) Extract(text string) (events.Action, error) {
	match := ipythonRe.FindStringSubmatch(text)
	thought := strings.TrimSpace(strings.Replace(text, match[0], "", 1))
	step, thought, err := planStep(text, thought)
	if err != nil {
		return nil, err
	}
	return events.RunCodeCell{Code: strings.TrimSpace(match[1]), Thought: thought, Step: step}, nil
}

type browseMatcher struct{}

func (browseMatcher) Matches(text string) bool { return browseRe.MatchString(text) }

func (browseMatcher) Extract(text string) (events.Action, error) {
	match := browseRe.FindStringSubmatch(text)
	thought := strings.TrimSpace(strings.Replace(text, match[0], "", 1))
	step, thought, err := planStep(text, thought)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(match[1])
	task := body
	if thought != "" {
		task = fmt.Sprintf("%s. I should start with: %s", thought, body)
	}
	return events.DelegateToAgent{Agent: "BrowsingAgent", Task: task, Thought: thought, Step: step}, nil
}

type delegateMatcher struct{}

func (delegateMatcher) Matches(text string) bool { return delegateRe.MatchString(text) }

func (delegateMatcher) Extract(text string) (events.Action, error) {
	match := delegateRe.FindStringSubmatch(text)
	thought := strings.TrimSpace(strings.Replace(text, match[0], "", 1))
	step, thought, err := planStep(text, thought)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(match[1])
	agent, task, found := strings.Cut(body, ":")
	if !found || strings.ContainsAny(agent, " \n") {
		agent, task = "CodeActAgent", body
	}
	return events.DelegateToAgent{
		Agent:   strings.TrimSpace(agent),
		Task:    strings.TrimSpace(task),
		Thought: thought,
		Step:    step,
	}, nil
}

type savePlanMatcher struct{}

func (savePlanMatcher) Matches(text string) bool { return savePlanRe.MatchString(text) }

func (savePlanMatcher) Extract(text string) (events.Action, error) {
	match := savePlanRe.FindStringSubmatch(text)
	thought := strings.TrimSpace(strings.Replace(text, match[0], "", 1))
	var steps []string
	for _, line := range strings.Split(match[1], "\n") {
		if line = strings.TrimSpace(line); line != "" {
			steps = append(steps, line)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("save_plan contains no steps")
	}
	return events.AddTask{Goal: steps[0], Subtasks: steps[1:], Thought: thought}, nil
}

type planStepMatcher struct{}

func (planStepMatcher) Matches(text string) bool { return planStepRe.MatchString(text) }

func (planStepMatcher) Extract(text string) (events.Action, error) {
	match := planStepRe.FindStringSubmatch(text)
	thought := strings.TrimSpace(strings.Replace(text, match[0], "", 1))
	step, err := strconv.Atoi(strings.TrimSpace(match[1]))
	if err != nil {
		return nil, fmt.Errorf("malformed plan step %q: %w", strings.TrimSpace(match[1]), err)
	}
	return events.ModifyTask{TaskID: strconv.Itoa(step), State: "in_progress", Thought: thought}, nil
}

type messageMatcher struct{}

func (messageMatcher) Matches(string) bool { return true }

func (messageMatcher) Extract(text string) (events.Action, error) {
	// Pure natural language means the model wants to talk to the user.
	return events.SendMessage{Content: text, WaitForResponse: true}, nil
}
