package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/ingest"
	"github.com/xxxsen/docqa/internal/model"
	"github.com/xxxsen/docqa/internal/retrieval"
)

func main() {
	var (
		configPath string
		envFile    string
	)

	rootCmd := &cobra.Command{
		Use:           "docqa",
		Short:         "document question answering over a vector store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with provider credentials")

	setup := func(ctx context.Context) (*app, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		return buildApp(ctx, cfg)
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return runServer(a)
		},
	}

	var (
		chunkSize int
		overlap   int
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "ingest local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return runIngest(cmd, a, args, chunkSize, overlap)
		},
	}
	ingestCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "override chunk size")
	ingestCmd.Flags().IntVar(&overlap, "overlap", -1, "override chunk overlap")

	var topK int
	queryCmd := &cobra.Command{
		Use:   "query <question>",
		Short: "answer a question from stored documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			var opts []retrieval.Option
			if topK > 0 {
				opts = append(opts, retrieval.WithTopK(topK))
			}
			printAnswer(a.pipeline.Query(cmd.Context(), args[0], opts...))
			return nil
		},
	}
	queryCmd.Flags().IntVar(&topK, "top-k", 0, "number of chunks to retrieve")

	deleteCmd := &cobra.Command{
		Use:   "delete <document_id>",
		Short: "delete every chunk of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ingest.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.Green("deleted %s", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, ingestCmd, queryCmd, deleteCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

// loadConfig reads configPath, or uses in process defaults when it is empty.
func loadConfig(configPath string) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func runIngest(cmd *cobra.Command, a *app, files []string, chunkSize, overlap int) error {
	ctx := cmd.Context()
	failed := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			color.Red("%s: %v", path, err)
			failed++
			continue
		}
		req := &ingest.Request{
			Filename:  filepath.Base(path),
			Data:      data,
			ChunkSize: chunkSize,
			Metadata:  map[string]interface{}{"source": path},
		}
		if overlap >= 0 {
			req.Overlap = &overlap
		}
		res, err := a.ingest.Ingest(ctx, req)
		if err != nil {
			color.Red("%s: %v", path, err)
			failed++
			continue
		}
		color.Green("%s: %d chunks stored as %s", path, res.NumChunks, res.DocumentID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func printAnswer(ans *model.Answer) {
	title := color.New(color.FgCyan, color.Bold)
	title.Println("Answer:")
	fmt.Println(ans.Answer)
	if len(ans.SourceDocuments) == 0 {
		return
	}
	fmt.Println()
	title.Println("Sources:")
	for i, src := range ans.SourceDocuments {
		color.Yellow("[%d] %v (%v)", i+1, src.Metadata["document_id"], src.Metadata["chunk_id"])
		fmt.Println(src.Content)
	}
}
