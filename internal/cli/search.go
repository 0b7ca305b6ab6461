package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HarrySoteriou/gallery/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search semantic memory",
		Long:  "Embed the query and return the most similar stored chunks.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("limit", "l", 0, "Max results (default: semantic_memory.num_documents)")
	cmd.Flags().Float64("min-similarity", -1, "Drop matches below this cosine similarity (default: semantic_memory.min_similarity)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	minSim, _ := cmd.Flags().GetFloat64("min-similarity")
	if limit <= 0 {
		limit = cfg.SemanticMemory.NumDocuments
	}
	if minSim < 0 {
		minSim = cfg.SemanticMemory.MinSimilarity
	}
	query := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Query:         query,
		TopK:          limit,
		MinSimilarity: minSim,
	})
	if err != nil {
		exitErr("search", err)
	}

	if formatFlag == "text" {
		for _, m := range results {
			fmt.Printf("%.3f  %s\n", m.Score, m.Text)
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
