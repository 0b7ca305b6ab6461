package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HarrySoteriou/gallery/internal/chunker"
	"github.com/HarrySoteriou/gallery/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chunk [file...]",
		Short: "Split text into retrieval chunks",
		Long:  "Split text into paragraph and sentence bounded chunks. Each file (or stdin) is one document; chunks carry its name and position.",
		Run:   runChunk,
	}

	cmd.Flags().IntP("max-size", "m", 0, "Max chunk size in characters (default: chunker.max_chunk_size)")

	RootCmd.AddCommand(cmd)
}

func runChunk(cmd *cobra.Command, args []string) {
	maxSize, _ := cmd.Flags().GetInt("max-size")
	if maxSize <= 0 {
		maxSize = cfg.Chunker.MaxChunkSize
	}

	sources := args
	if len(sources) == 0 {
		sources = []string{""}
	}

	var chunks []model.Chunk
	for _, src := range sources {
		var files []string
		key := "stdin"
		if src != "" {
			files, key = []string{src}, src
		}
		text, err := readInput(files)
		if err != nil {
			exitErr("read input", err)
		}
		chunks = append(chunks, chunker.ChunkDocument(key, text, maxSize)...)
	}
	if len(chunks) == 0 {
		exitErr("chunk", fmt.Errorf("text is required (file args or stdin)"))
	}

	if formatFlag == "text" {
		parts := make([]string, len(chunks))
		for i, c := range chunks {
			parts[i] = fmt.Sprintf("%s#%d\n%s", c.DocumentKey, c.Seq, c.Text)
		}
		fmt.Println(strings.Join(parts, "\n---\n"))
		return
	}
	b, _ := json.MarshalIndent(chunks, "", "  ")
	fmt.Println(string(b))
}
