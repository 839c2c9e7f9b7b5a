package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/agent"
	"github.com/spigell/resume-chat/internal/conversation"
)

const (
	commandExit  = "/exit"
	commandReset = "/reset"
	commandFocus = "/focus"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		env := setup(ctx)
		defer env.close()

		chat(ctx, env.orchestrator(), env.logger, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chat runs the read-answer loop until the user leaves. A failed turn is
// reported and the conversation continues from the previous state.
func chat(ctx context.Context, orchestrator *agent.Orchestrator, logger *zap.Logger, out io.Writer) {
	input := promptui.Prompt{
		Label: "You",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("type a question or " + commandExit)
			}
			return nil
		},
	}

	fmt.Fprintf(out, "Ask about candidates or just chat. %s leaves, %s starts over, %s shows the resumes in focus.\n\n",
		commandExit, commandReset, commandFocus)

	state := conversation.New()
	totals := conversation.Usage{}

	for {
		text, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Fatal("reading input", zap.Error(err))
		}

		switch strings.TrimSpace(text) {
		case commandExit:
			fmt.Fprintf(out, "Session usage: %s\n", formatUsage(&totals))
			return
		case commandReset:
			state = conversation.New()
			totals = conversation.Usage{}
			fmt.Fprintln(out, "Started a new conversation.")
			continue
		case commandFocus:
			fmt.Fprintf(out, "In focus: %v\n", state.FocusIDs)
			continue
		}

		next, err := orchestrator.Advance(ctx, state, text)
		if err != nil {
			fmt.Fprintf(out, "Could not answer: %s\n\n", err)
			continue
		}
		state = next
		if state.LastUsage != nil {
			totals = totals.Add(*state.LastUsage)
		}

		printReply(out, state)
	}
}

func printReply(out io.Writer, s conversation.State) {
	reply, ok := s.Reply()
	if !ok {
		return
	}
	fmt.Fprintf(out, "\n[%s]\n%s\n", s.Route.Label(), strings.TrimSpace(reply.Content))
	if s.LastUsage != nil {
		fmt.Fprintf(out, "(%s)\n", formatUsage(s.LastUsage))
	}
	fmt.Fprintln(out)
}

func formatUsage(u *conversation.Usage) string {
	return fmt.Sprintf("tokens in %d, out %d, total %d", u.InputTokens, u.OutputTokens, u.TotalTokens)
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		env := setup(ctx)
		defer env.close()

		state, err := env.orchestrator().Advance(ctx, conversation.New(), strings.Join(args, " "))
		if err != nil {
			env.logger.Error("answering", zap.Error(err))
			env.close()
			os.Exit(1)
		}

		printReply(cmd.OutOrStdout(), state)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
