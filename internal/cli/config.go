package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HarrySoteriou/gallery/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  "Print the configuration after defaults and GALLERY_* overrides. --write saves it as YAML.",
		Run:   runConfig,
	}

	cmd.Flags().String("write", "", "Write the effective configuration to this path")

	RootCmd.AddCommand(cmd)
}

func runConfig(cmd *cobra.Command, args []string) {
	path, _ := cmd.Flags().GetString("write")
	if path != "" {
		if err := config.Save(path, cfg); err != nil {
			exitErr("write config", err)
		}
		b, _ := json.Marshal(map[string]any{"ok": true, "path": path})
		fmt.Println(string(b))
		return
	}

	if formatFlag == "text" {
		b, err := yaml.Marshal(cfg)
		if err != nil {
			exitErr("config", err)
		}
		fmt.Print(string(b))
		return
	}
	b, _ := json.MarshalIndent(cfg, "", "  ")
	fmt.Println(string(b))
}
