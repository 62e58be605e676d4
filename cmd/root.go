package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docrecon/internal/config"
	"github.com/sells-group/docrecon/internal/metrics"
)

var (
	cfg         *config.Config
	envFile     string
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:          "docrecon",
	Short:        "Document reconstruction and evidence extraction",
	Long:         "Rebuilds tables, formulas, charts and sections from converted documents, runs OCR and transcription fallbacks, and records citable evidence and weekly metric facts.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}

		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		defer zap.L().Sync() //nolint:errcheck
		if metricsFile == "" {
			return nil
		}
		return metrics.WriteTextfile(metricsFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration (missing file is ignored)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format to this path on exit")
}

// loadEnvFile loads KEY=VALUE pairs without overriding variables that are
// already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "load env file %s", path)
	}
	return nil
}
