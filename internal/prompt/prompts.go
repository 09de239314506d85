package prompt

import "fmt"

const systemCore = `You are an autonomous engineering agent working inside a sandboxed Linux environment.
You act by emitting exactly one action per turn using delimiter tags:
<execute_bash>command</execute_bash> runs a shell command.
<execute_ipython>code</execute_ipython> runs code in the interpreter kernel.
<execute_browse>instruction</execute_browse> delegates a browsing sub-task.
<execute_delegate>agent: task</execute_delegate> hands a sub-task to another agent.
<finish></finish> ends the task.
Text outside any tag is a message to the user.`

const systemRules = `Rules:
- Emit at most one action per response.
- Long-running commands may be started in the background with a trailing &.
- Reply with <execute_bash>exit</execute_bash> if the user asks you to stop.`

const inContextExample = `Here is an example of how you can interact with the environment for task solving:

USER: Create a file named hello.txt containing "hi".

ASSISTANT: Sure, let me create that file.
<execute_bash>
echo "hi" > hello.txt
</execute_bash>

USER: OBSERVATION:
[Command 2 finished with exit code 0]

ASSISTANT: The file is in place.
<finish></finish>

NOW, LET'S START!`

// SystemMessage composes the fixed system prompt from its sections.
func SystemMessage() string {
	b := NewBuilder()
	b.Add(Block{ID: "core", Priority: 100, Content: systemCore})
	b.Add(Block{ID: "rules", Priority: 50, Content: systemRules})
	return b.Build()
}

// InContextExample is the second fixed message of every conversation.
func InContextExample() string {
	return inContextExample
}

// Reminder is appended to the latest user message in the transient
// view so the agent knows how many turns remain.
func Reminder(turnsLeft int) string {
	return fmt.Sprintf("\n\nENVIRONMENT REMINDER: You have %d turns left to complete the task. When finished reply with <finish></finish>", turnsLeft)
}
