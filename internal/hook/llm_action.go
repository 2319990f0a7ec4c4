package hook

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/user/chatshell/internal/history"
	"github.com/user/chatshell/internal/llm"
	"github.com/user/chatshell/internal/popup"
)

// runLLM drives one assistant exchange: prompt the user, send to the model,
// and for each returned command ask for confirmation, run it, and feed the
// result back. The cycle is bounded so a misbehaving model cannot hold the
// terminal forever.
func (e *Executor) runLLM(value string) (bool, error) {
	if e.Assistant == nil {
		return false, fmt.Errorf("no assistant configured")
	}

	switch value {
	case "reset":
		e.Assistant.Reset()
		return true, popup.Show(e.Surface, "Assistant", "Conversation reset.")
	case "prompt":
	default:
		return false, fmt.Errorf("unknown llm action %q", value)
	}

	prompt, ok, err := popup.Input(e.Surface, "Assistant", "Ask about or request a shell command.")
	if err != nil {
		return false, err
	}
	if !ok || strings.TrimSpace(prompt) == "" {
		// Cancelled; the key was still claimed by the hook.
		return true, nil
	}

	ctx := context.Background()
	e.recordTurn("user", prompt, "")

	reply, err := e.Assistant.Send(ctx, prompt)
	if err != nil {
		popup.Show(e.Surface, "Assistant error", err.Error())
		return false, err
	}

	for round := 0; ; round++ {
		if reply.Text != "" {
			e.recordTurn("assistant", reply.Text, "")
			if err := popup.Show(e.Surface, "Assistant", reply.Text); err != nil {
				return false, err
			}
		}
		if reply.Command == nil {
			return true, nil
		}
		if round >= llm.MaxToolRounds {
			popup.Show(e.Surface, "Assistant", "Too many command rounds; stopping here.")
			return true, nil
		}

		reply, err = e.handleCommand(ctx, reply.Command)
		if err != nil {
			popup.Show(e.Surface, "Assistant error", err.Error())
			return false, err
		}
	}
}

func (e *Executor) handleCommand(ctx context.Context, req *llm.CommandRequest) (llm.Reply, error) {
	body := "$ " + req.Command
	if req.Explanation != "" {
		body = req.Explanation + "\n\n" + body
	}
	body += "\n\nType y to run, anything else to decline."

	answer, ok, err := popup.Input(e.Surface, "Run command?", body)
	if err != nil {
		return llm.Reply{}, err
	}
	if !ok || !strings.EqualFold(strings.TrimSpace(answer), "y") {
		e.recordTurn("user", "declined command", req.Command)
		return e.Assistant.SendCommandResult(ctx, req.ToolCallID, "User declined to run the command.", false)
	}

	e.recordTurn("assistant", "running command", req.Command)
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	out, runErr := exec.CommandContext(cmdCtx, "/bin/sh", "-c", req.Command).CombinedOutput()
	cancel()

	output := strings.TrimRight(string(out), "\n")
	if runErr != nil {
		if output == "" {
			output = runErr.Error()
		} else {
			output += "\n" + runErr.Error()
		}
	}
	if output != "" {
		if err := popup.Show(e.Surface, "$ "+req.Command, output); err != nil {
			return llm.Reply{}, err
		}
	}
	return e.Assistant.SendCommandResult(ctx, req.ToolCallID, output, runErr == nil)
}

func (e *Executor) recordTurn(role, content, command string) {
	if e.Store == nil || e.Assistant == nil {
		return
	}
	turn := history.Turn{
		ConversationID: e.Assistant.ConversationID(),
		Role:           role,
		Content:        content,
		Command:        command,
	}
	if err := e.Store.RecordTurn(context.Background(), turn); err != nil {
		e.logger().Warn("failed to record conversation turn", "error", err)
	}
}
