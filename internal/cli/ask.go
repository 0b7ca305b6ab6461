package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from memorized documents",
		Long:  "Memorize the --doc files into a fresh session, then answer the question with retrieved context.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk,
	}

	cmd.Flags().StringArray("doc", nil, "Document to memorize before asking (repeatable)")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	docs, _ := cmd.Flags().GetStringArray("doc")
	question := strings.Join(args, " ")
	ctx := cmd.Context()

	svc, err := newService(ctx)
	if err != nil {
		exitErr("start session", err)
	}
	defer svc.Close()

	for _, path := range docs {
		text, err := readInput([]string{path})
		if err != nil {
			exitErr("read document", err)
		}
		if err := svc.MemorizeText(ctx, text); err != nil {
			exitErr("memorize "+path, err)
		}
	}

	if formatFlag == "text" {
		if _, err := svc.GenerateResponse(ctx, question, streamTo(os.Stdout)); err != nil {
			exitErr("generate", err)
		}
		return
	}

	answer, err := svc.Ask(ctx, question, nil)
	if err != nil {
		exitErr("generate", err)
	}
	b, _ := json.MarshalIndent(map[string]any{
		"backend":      svc.Kind(),
		"capabilities": svc.Capabilities(),
		"documents":    svc.Documents(),
		"answer":       answer.Text,
		"context":      answer.Context,
	}, "", "  ")
	fmt.Println(string(b))
}
