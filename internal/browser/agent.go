package browser

import (
	"context"
	"fmt"
	"regexp"

	"github.com/driftworks/agentd/internal/events"
)

// Fetcher loads a page and reports its content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) events.BrowserOutput
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// Agent is the stepper behind delegated browsing sessions: it pulls
// the first URL out of the task, fetches the page, reports the
// content, and finishes.
type Agent struct {
	Fetcher  Fetcher
	reported bool
}

func (a *Agent) Step(ctx context.Context, history *events.History, turnsLeft int) (events.Action, error) {
	if a.reported {
		return events.FinishTask{}, nil
	}
	a.reported = true

	task := history.LastUserMessage()
	url := urlPattern.FindString(task)
	if url == "" {
		return events.SendMessage{Content: fmt.Sprintf("no URL found in task: %s", task)}, nil
	}
	if a.Fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	out := a.Fetcher.Fetch(ctx, url)
	if out.Error {
		return events.SendMessage{Content: out.Content}, nil
	}
	return events.SendMessage{Content: fmt.Sprintf("Content of %s:\n%s", url, out.Content)}, nil
}
