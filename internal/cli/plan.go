package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	harness "github.com/callwright/callwright/core"
	"github.com/callwright/callwright/core/dialogue"
	"github.com/callwright/callwright/core/llms"
	"github.com/callwright/callwright/core/llms/openai"
	"github.com/callwright/callwright/core/stimuli"
	"github.com/callwright/callwright/core/texttospeech"
)

// planMinDuration overrides tts.min_duration for batch-rendered plan audio.
const planMinDuration = 8 * time.Second

func newPlanCmd() *cobra.Command {
	var (
		outDir   string
		stepsOut string
	)

	cmd := &cobra.Command{
		Use:   "plan [scenario]",
		Short: "Generate a conversation plan and render it to audio",
		Long: `Plan asks the model for a fixed sequence of caller utterances for the
scenario and renders each one to a WAV file, so the conversation can be
replayed without the model in the loop. Plan audio is padded to 8 seconds
regardless of tts.min_duration. The scenario argument overrides run.scenario.

With --steps-out the plan is also written as a steps file that synthetic
runs can replay.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			scenario := cfg.Run.Scenario
			if len(args) == 1 {
				scenario = args[0]
			}
			if scenario == "" {
				return errors.New("no scenario given (run.scenario or argument)")
			}

			maxSteps := cfg.Run.MaxSteps
			if maxSteps <= 0 {
				maxSteps = harness.DefaultDynamicMaxSteps
			}

			llm, err := openai.NewClient(openai.WithModel(cfg.LLM.Model))
			if err != nil {
				return fmt.Errorf("planning needs an LLM: %w", err)
			}

			synth, err := buildSynthesizer(cfg, texttospeech.WithMinDuration(planMinDuration))
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var promptOpts []llms.PromptOption
			if cfg.LLM.Temperature > 0 {
				promptOpts = append(promptOpts, llms.WithTemperature(cfg.LLM.Temperature))
			}
			steps, err := dialogue.PlanSteps(ctx, llm, scenario, maxSteps, promptOpts...)
			if err != nil {
				return err
			}
			for i, step := range steps {
				fmt.Printf("%d. %s\n", i+1, step)
			}

			if stepsOut != "" {
				if err := writeStepsFile(stepsOut, steps); err != nil {
					return err
				}
			}

			dir := cfg.Paths.Synthesis
			if outDir != "" {
				dir = outDir
			}

			prepared, err := stimuli.Synthesize(ctx, synth, steps, dir)
			if err != nil {
				return err
			}

			failed := 0
			for _, item := range prepared.Items {
				if item.Err != nil {
					failed++
					fmt.Printf("step %d: %v\n", item.Step, item.Err)
					continue
				}
				fmt.Printf("step %d: %s\n", item.Step, item.AudioPath)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d steps failed to synthesize", failed, len(prepared.Items))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (defaults to paths.synthesis)")
	cmd.Flags().StringVar(&stepsOut, "steps-out", "", "Also write the plan as a steps file")

	return cmd
}

// writeStepsFile saves the plan one utterance per line, the format
// ParseStepsFile reads back.
func writeStepsFile(path string, steps []string) error {
	data := strings.Join(steps, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("failed to write steps file: %w", err)
	}
	return nil
}
