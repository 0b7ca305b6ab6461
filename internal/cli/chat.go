package cli

import (
	"github.com/spf13/cobra"

	"github.com/HarrySoteriou/gallery/internal/tui"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive retrieval-augmented chat",
		Long:  "Open a terminal chat session. /memorize <file> adds a document, /clear forgets everything, esc cancels a reply.",
		Run:   runChat,
	}

	cmd.Flags().StringArray("doc", nil, "Document to memorize before the chat starts (repeatable)")

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) {
	docs, _ := cmd.Flags().GetStringArray("doc")
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

	if err := tui.Run(ctx, svc); err != nil {
		exitErr("chat", err)
	}
}
