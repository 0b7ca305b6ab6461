package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/HarrySoteriou/gallery/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import documents from JSON",
		Long:  "Import documents from JSON on stdin. Expects the format produced by export; chunks are re-embedded.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var docs []store.ExportedDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), docs)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
