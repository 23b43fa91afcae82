package main

import (
	"fmt"
	"os"

	"github.com/knights-analytics/hugot"
	"github.com/spf13/cobra"
)

func downloadModelCmd() *cobra.Command {
	var (
		envFile    string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "download-model",
		Short: "Download the local embedding model",
		Long: `Download the ONNX embedding model for the local provider.

The model named by embedding.model_name is fetched from HuggingFace into
embedding.model_dir, after which serve runs without network access or an
OpenAI key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownloadModel(envFile, configFile)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")

	return cmd
}

func runDownloadModel(envFile, configFile string) error {
	cfg, err := loadConfig(envFile, configFile)
	if err != nil {
		return err
	}

	dest := cfg.Embedding.ModelDir
	model := cfg.Embedding.ModelName

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}

	fmt.Printf("Downloading %s to %s...\n", model, dest)

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	modelPath, err := hugot.DownloadModel(model, dest, opts)
	if err != nil {
		return fmt.Errorf("download model: %w", err)
	}

	fmt.Printf("Model ready at %s\n", modelPath)
	return nil
}
