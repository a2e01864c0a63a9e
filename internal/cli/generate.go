package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	assetsadapter "github.com/evanhartley/genforge/internal/adapter/driven/assets"
	"github.com/evanhartley/genforge/internal/application"
	"github.com/evanhartley/genforge/internal/config"
	"github.com/evanhartley/genforge/internal/domain/model"
)

func newGenerateCmd() *cobra.Command {
	var (
		genType  string
		prompt   string
		negative string
		width    int
		height   int
		quality  string
		steps    int
		guidance float64
		seed     int64
		duration int
		upscale  int
		files    []string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one generation job to completion",
		Long: "Submit a generation, poll it until it finishes, and download the resulting " +
			"assets. Blocks for up to the configured wait budget.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cred, err := resolveCredential(cmd, cfg)
			if err != nil {
				return err
			}

			stores, err := openStores(cmd, cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			executor, _ := buildExecutor(cfg, slog.Default())
			provider := application.NewClientProvider(buildClient(cfg, cred))
			orch := application.NewOrchestrator(provider, executor, stores.ledger, stores.jobs, application.OrchestratorConfig{
				PollInterval: cfg.PollInterval,
				MaxWait:      cfg.MaxWait,
			}, slog.Default())

			fileRefs := make([]model.FileRef, 0, len(files))
			for _, u := range files {
				fileRefs = append(fileRefs, model.FileRef{URL: u})
			}

			params := model.GenerationParams{
				Type:           model.GenerationType(genType),
				Prompt:         prompt,
				NegativePrompt: negative,
				Width:          width,
				Height:         height,
				Quality:        quality,
				Steps:          steps,
				Guidance:       guidance,
				Duration:       duration,
				UpscaleRatio:   upscale,
				Files:          fileRefs,
			}
			if cmd.Flags().Changed("seed") {
				params.Seed = &seed
			}
			if err := params.Validate(); err != nil {
				return err
			}

			result := orch.Run(cmd.Context(), params)
			if !result.Succeeded() {
				return fmt.Errorf("job %s ended %s: %s", result.Job.ID, result.Job.State, result.Job.FaultDetail)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "job %s succeeded after %d polls (%s)\n",
				result.Job.ID, result.Job.Polls, result.Job.Duration().Round(time.Millisecond))

			paths, err := assetsadapter.NewDownloader().SaveAll(cmd.Context(), result.Job.Files, outDir)
			if err != nil {
				return fmt.Errorf("download assets: %w", err)
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&genType, "type", "t", "CREATE", "generation type")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "generation prompt")
	cmd.Flags().StringVar(&negative, "negative", "", "negative prompt")
	cmd.Flags().IntVar(&width, "width", 0, "output width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "output height in pixels")
	cmd.Flags().StringVar(&quality, "quality", "", "quality preset")
	cmd.Flags().IntVar(&steps, "steps", 0, "diffusion steps")
	cmd.Flags().Float64Var(&guidance, "guidance", 0, "guidance scale")
	cmd.Flags().Int64Var(&seed, "seed", 0, "deterministic seed")
	cmd.Flags().IntVar(&duration, "duration", 0, "clip duration in seconds")
	cmd.Flags().IntVar(&upscale, "upscale-ratio", 0, "upscale multiplier")
	cmd.Flags().StringSliceVar(&files, "file", nil, "input file URL (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to download assets into")

	return cmd
}
