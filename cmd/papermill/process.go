package main

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/papermill/papermill/internal/ledger"
	"github.com/papermill/papermill/internal/pipeline"
)

var (
	processStages     []string
	processLanguage   string
	processTranslator string
	processGenerator  string
	processOCR        string
)

var processCmd = &cobra.Command{
	Use:   "process <paper.pdf>",
	Short: "Run the pipeline for one paper",
	Long: `Process runs the selected stages for one PDF. Completed stages are
skipped; interrupted stages resume from their last checkpoint. Artifacts land
in <home>/papers/<paper-id>/.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := papermillHome()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		manager, err := loadConfig(h)
		if err != nil {
			return err
		}
		cfg := manager.Get()
		registry := buildRegistry(manager)

		opts := pipeline.Options{
			OCRProvider:    cfg.Pipeline.OCRProvider,
			Translator:     cfg.Pipeline.Translator,
			Generator:      cfg.Pipeline.Generator,
			TargetLanguage: cfg.Pipeline.TargetLanguage,
			UnitDelay:      time.Duration(cfg.Pipeline.UnitDelayMS) * time.Millisecond,
			ContextChars:   cfg.Pipeline.ContextChars,
		}
		if processLanguage != "" {
			opts.TargetLanguage = processLanguage
		}
		if processTranslator != "" {
			opts.Translator = processTranslator
		}
		if processGenerator != "" {
			opts.Generator = processGenerator
		}
		if processOCR != "" {
			opts.OCRProvider = processOCR
		}

		coordinator := pipeline.NewCoordinator(h, registry, ledger.New(nil), opts.UnitDelay, slog.Default())

		job, err := coordinator.Process(cmd.Context(), args[0], processStages, opts)
		if err != nil {
			return err
		}

		printJob(job)
		if job.Status == pipeline.StatusFailed {
			return fmt.Errorf("one or more stages failed")
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringSliceVar(&processStages, "stages", nil,
		"stages to run (default: all of ocr,translate,polish,sections,blog,slides)")
	processCmd.Flags().StringVar(&processLanguage, "language", "", "target language override")
	processCmd.Flags().StringVar(&processTranslator, "translator", "", "chat provider for translate/polish")
	processCmd.Flags().StringVar(&processGenerator, "generator", "", "chat provider for sections/blog/slides")
	processCmd.Flags().StringVar(&processOCR, "ocr", "", "OCR provider")
}

func printJob(job *pipeline.Job) {
	fmt.Printf("paper: %s (job %s)\n", job.PaperID, job.ID)
	for _, stage := range job.Stages {
		switch {
		case stage.Skipped:
			fmt.Printf("  %-10s skipped (already complete)\n", stage.Stage)
		case stage.Err != nil:
			fmt.Printf("  %-10s FAILED after %s: %v\n", stage.Stage, stage.Duration.Round(time.Millisecond), stage.Err)
		default:
			fmt.Printf("  %-10s ok (%s)\n", stage.Stage, stage.Duration.Round(time.Millisecond))
		}
	}
	printUsage(job.Usage)
	fmt.Printf("status: %s\n", job.Status)
}

func printUsage(snap ledger.Snapshot) {
	if snap.Grand.Calls == 0 {
		return
	}
	fmt.Printf("usage: %d calls, %d in / %d out tokens, $%.4f\n",
		snap.Grand.Calls, snap.Grand.InputTokens, snap.Grand.OutputTokens, snap.Grand.CostUSD)
	for _, name := range sortedKeys(snap.ByFeature) {
		t := snap.ByFeature[name]
		fmt.Printf("  %-14s %d calls, %d in / %d out, $%.4f\n",
			name, t.Calls, t.InputTokens, t.OutputTokens, t.CostUSD)
	}
}

func sortedKeys(m map[string]ledger.Totals) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
