package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/docrecon/internal/artifact"
	"github.com/sells-group/docrecon/internal/fallback"
	"github.com/sells-group/docrecon/internal/model"
	"github.com/sells-group/docrecon/internal/ocr"
	"github.com/sells-group/docrecon/internal/transcribe"
)

var (
	extractJSON    bool
	extractPersist bool
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image-or-pdf>",
	Short: "Extract text from an image or PDF with the OCR fallback chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChain(cmd, "ocr", model.ArtifactImage, ocr.NewChain(cfg.OCR), args[0])
	},
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio>",
	Short: "Transcribe an audio file with the transcription fallback chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChain(cmd, "transcribe", model.ArtifactAudio, transcribe.NewChain(cfg.Transcribe), args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{ocrCmd, transcribeCmd} {
		c.Flags().BoolVar(&extractJSON, "json", false, "print the full chain result as JSON")
		c.Flags().BoolVar(&extractPersist, "persist", false, "write the text and meta.json into the artifact tree")
		rootCmd.AddCommand(c)
	}
}

func runChain(cmd *cobra.Command, mode string, kind model.ArtifactKind, chain *fallback.Chain, path string) error {
	if err := cfg.Validate(mode); err != nil {
		return err
	}
	res := chain.Run(cmd.Context(), path)

	if extractPersist {
		art, err := artifact.NewArtifact(kind, path)
		if err != nil {
			return err
		}
		if _, err := fallback.Persist(artifact.NewLayout(cfg.Artifacts.Root), art, res); err != nil {
			return err
		}
	}

	if extractJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "engine: %s\n", res.Engine)
	if res.Text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	}
	return nil
}
