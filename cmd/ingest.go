package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/ingest"
	"github.com/spigell/resume-chat/internal/logger"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Prepare the resume dataset and load it into the chunk store",
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Clean and chunk the raw resume CSV",
	Run: func(cmd *cobra.Command, _ []string) {
		lg, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
		if err != nil {
			log.Fatalf("creating a logger: %s", err)
		}

		cfg, err := getConfig()
		if err != nil {
			lg.Fatal("getting a config", zap.Error(err))
		}

		in, out := cmd.Flag("input").Value.String(), cmd.Flag("output").Value.String()

		src, err := os.Open(in)
		if err != nil {
			lg.Fatal("opening raw dataset", zap.Error(err))
		}
		defer src.Close()

		raw, err := ingest.ReadRaw(src)
		if err != nil {
			lg.Fatal("reading raw dataset", zap.Error(err), zap.String("file", in))
		}

		chunks := ingest.Prepare(raw, cfg.Ingest.ChunkWords)

		dst, err := os.Create(out)
		if err != nil {
			lg.Fatal("creating chunk file", zap.Error(err))
		}
		if err := ingest.WriteChunks(dst, chunks); err != nil {
			dst.Close()
			lg.Fatal("writing chunks", zap.Error(err), zap.String("file", out))
		}
		if err := dst.Close(); err != nil {
			lg.Fatal("closing chunk file", zap.Error(err))
		}

		lg.Info("dataset prepared",
			zap.Int("resumes", len(raw)),
			zap.Int("chunks", len(chunks)),
			zap.String("output", out),
		)
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Embed prepared chunks and upsert them into the chunk store",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		env := setup(ctx)
		defer env.close()

		in := cmd.Flag("input").Value.String()
		src, err := os.Open(in)
		if err != nil {
			env.logger.Fatal("opening chunk file", zap.Error(err))
		}
		defer src.Close()

		chunks, err := ingest.ReadChunks(src)
		if err != nil {
			env.logger.Fatal("reading chunks", zap.Error(err), zap.String("file", in))
		}

		pipeline := ingest.NewPipeline(env.embedder(), env.store, ingest.Options{
			BatchSize:   env.config.Ingest.BatchSize,
			MaxAttempts: env.config.Ingest.MaxAttempts,
		}, env.logger)

		stats, err := pipeline.Run(ctx, chunks)
		if err != nil {
			env.logger.Error("ingest failed", zap.Error(err), zap.Int("batches_stored", stats.Batches))
			env.close()
			os.Exit(1)
		}

		env.logger.Info("chunks loaded", zap.Int("chunks", stats.Chunks), zap.Int("retries", stats.Retries))
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(prepareCmd, loadCmd)

	prepareCmd.Flags().StringP("input", "i", "Resume.csv", "raw dataset with ID, Category and Resume_str columns")
	prepareCmd.Flags().StringP("output", "o", "resume_chunks.csv", "where to write the cleaned chunks")
	loadCmd.Flags().StringP("input", "i", "resume_chunks.csv", "chunk file written by ingest prepare")
}
