package main

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/lawrag/server"
)

var (
	chatModel string
	chatTopK  int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively; type exit or quit to leave",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatModel, "model", "", "completion model (overrides llm.model)")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 0, "precedents per answer (overrides retrieval.top_k)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	asker, err := a.asker(chatModel)
	if err != nil {
		return err
	}

	return chatLoop(cmd, asker, a.requestTimeout())
}

func chatLoop(cmd *cobra.Command, asker server.Asker, timeout time.Duration) error {
	out := cmd.OutOrStdout()
	userPrompt := color.New(color.FgGreen)
	assistantPrompt := color.New(color.FgCyan)

	color.New(color.FgCyan).Fprintln(out, "챗봇 실행 완")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		userPrompt.Fprint(out, "\n질문: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if q := strings.ToLower(query); q == "exit" || q == "quit" {
			break
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		spin := startSpinner(cmd.ErrOrStderr(), " 판례 검색 중...")
		answer, _, err := asker.Ask(ctx, query, chatTopK)
		spin.Stop()
		cancel()

		if err != nil {
			color.New(color.FgRed).Fprintf(out, "\nError: %v\n", err)
			continue
		}

		assistantPrompt.Fprintf(out, "\n답변:\n\n%s\n", answer)
	}

	color.New(color.FgCyan).Fprintln(out, "챗봇을 종료합니다.")
	return scanner.Err()
}
