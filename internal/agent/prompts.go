package agent

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/router.md
	routerPrompt string
	//go:embed prompts/resume.md
	resumePrompt string
	//go:embed prompts/chat.md
	chatPrompt string
)

func buildResumeQuestion(original, resolved, resumeContext string) string {
	var b strings.Builder
	b.WriteString("User question:\n")
	b.WriteString(strings.TrimSpace(original))
	b.WriteString("\n\n")
	if resolved != "" && resolved != original {
		b.WriteString("Resolved follow-up request:\n")
		b.WriteString(resolved)
		b.WriteString("\n\n")
	}
	b.WriteString("Here is the resume context from the database:\n")
	b.WriteString(resumeContext)
	b.WriteString("\n\nUse ONLY this information to answer the user's question.")
	return b.String()
}
