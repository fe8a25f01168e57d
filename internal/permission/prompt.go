package permission

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	promptBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	allowStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	denyStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	feedbackStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

// TerminalPrompt is the default PromptFunc: a boxed prompt on stdout
// reading a single answer from stdin. Non-interactive stdin auto-allows
// instead of hanging.
func TerminalPrompt(ctx context.Context, req *Request) (Response, error) {
	fmt.Println()
	header := fmt.Sprintf("+-- PERMISSION: %s ", req.ToolName)
	pad := 58 - len(header)
	if pad < 0 {
		pad = 0
	}
	fmt.Println(promptBorderStyle.Render(header + strings.Repeat("-", pad) + "+"))
	for _, line := range strings.Split(req.Describe(), "\n") {
		fmt.Printf("|  %s\n", line)
	}
	fmt.Println("+" + strings.Repeat("-", 57) + "+")
	fmt.Printf("|  %s  %s  %s  %s  %s\n",
		allowStyle.Render("[a]llow"),
		allowStyle.Render("[A]lways"),
		denyStyle.Render("[d]eny"),
		denyStyle.Render("[N]ever"),
		feedbackStyle.Render("[f]eedback"))
	fmt.Println("+" + strings.Repeat("-", 57) + "+")

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println("  > [Auto-allowing in non-interactive mode]")
		return Response{Answer: AnswerAllow}, nil
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("  > ")
	line, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println("  > [Auto-allowing on EOF]")
		return Response{Answer: AnswerAllow}, nil
	}
	answer := strings.TrimSpace(line)

	// Uppercase shortcuts are the permanent variants.
	switch answer {
	case "A":
		return Response{Answer: AnswerAlways}, nil
	case "N":
		return Response{Answer: AnswerNever}, nil
	}

	switch strings.ToLower(answer) {
	case "a", "allow":
		return Response{Answer: AnswerAllow}, nil
	case "always":
		return Response{Answer: AnswerAlways}, nil
	case "d", "deny":
		return Response{Answer: AnswerDeny}, nil
	case "never":
		return Response{Answer: AnswerNever}, nil
	case "f", "feedback":
		fmt.Println(feedbackStyle.Render("  What should the AI do instead?"))
		fmt.Print("  > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return Response{Answer: AnswerDeny}, nil
		}
		text = strings.TrimSpace(text)
		if text == "" {
			fmt.Println("  [No feedback provided, denying]")
			return Response{Answer: AnswerDeny}, nil
		}
		return Response{Answer: AnswerFeedback, Feedback: text}, nil
	default:
		return Response{Answer: AnswerDeny}, nil
	}
}
