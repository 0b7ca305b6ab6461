package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HarrySoteriou/gallery/internal/chunker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "memorize [file...]",
		Short: "Chunk text and store it in semantic memory",
		Long:  "Chunk text from files or stdin and record it as one document in the semantic memory database.",
		Run:   runMemorize,
	}

	RootCmd.AddCommand(cmd)
}

func runMemorize(cmd *cobra.Command, args []string) {
	text, err := readInput(args)
	if err != nil {
		exitErr("read input", err)
	}
	chunks := chunker.ChunkText(text, cfg.Chunker.MaxChunkSize)
	if len(chunks) == 0 {
		exitErr("memorize", fmt.Errorf("text is required (file args or stdin)"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	key, err := s.RecordBatchedMemoryItems(cmd.Context(), chunks)
	if err != nil {
		exitErr("memorize", err)
	}

	if formatFlag == "text" {
		fmt.Printf("%s %d chunks -> %s\n", key, len(chunks), s.Path())
		return
	}
	b, _ := json.Marshal(map[string]any{"ok": true, "document": key, "chunks": len(chunks), "db": s.Path()})
	fmt.Println(string(b))
}
