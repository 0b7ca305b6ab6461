package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HarrySoteriou/gallery/internal/video"
)

func init() {
	cmd := &cobra.Command{
		Use:   "video [question]",
		Short: "Describe video frames into memory",
		Long: "Describe a directory of extracted frames in batches with the vision model, memorize each " +
			"segment description, and optionally answer a question about the video.",
		Run: runVideo,
	}

	cmd.Flags().String("frames", "", "Directory of extracted frame images (required)")
	cmd.MarkFlagRequired("frames")

	RootCmd.AddCommand(cmd)
}

type segmentOutput struct {
	Batch       int    `json:"batch"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

func runVideo(cmd *cobra.Command, args []string) {
	dir, _ := cmd.Flags().GetString("frames")
	ctx := cmd.Context()

	frames, err := video.LoadFrames(dir, cfg.FrameInterval())
	if err != nil {
		exitErr("load frames", err)
	}
	if len(frames) == 0 {
		exitErr("video", fmt.Errorf("no image frames in %s", dir))
	}

	svc, err := newService(ctx)
	if err != nil {
		exitErr("start session", err)
	}
	defer svc.Close()

	a, err := video.NewAnalyzer(svc, svc, cfg.VideoOptions(), log)
	if err != nil {
		exitErr("video", err)
	}
	results, err := a.Analyze(ctx, frames)
	if err != nil {
		exitErr("analyze", err)
	}

	out := make([]segmentOutput, len(results))
	for i, r := range results {
		out[i] = segmentOutput{Batch: r.Batch, Start: r.Start, End: r.End, Description: r.Description}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}

	if len(args) == 0 {
		b, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(b))
		return
	}

	question := strings.Join(args, " ")
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
		"segments": out,
		"answer":   answer.Text,
		"context":  answer.Context,
	}, "", "  ")
	fmt.Println(string(b))
}
