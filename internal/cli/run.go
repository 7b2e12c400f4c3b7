package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	harness "github.com/callwright/callwright/core"
	"github.com/callwright/callwright/core/audio"
	"github.com/callwright/callwright/core/audio/miniaudio"
	"github.com/callwright/callwright/core/dialogue"
	"github.com/callwright/callwright/core/evaluation"
	"github.com/callwright/callwright/core/llms/openai"
	"github.com/callwright/callwright/core/results"
	"github.com/callwright/callwright/core/speechtotext"
	deepgramstt "github.com/callwright/callwright/core/speechtotext/deepgram"
	"github.com/callwright/callwright/core/stimuli"
	"github.com/callwright/callwright/internal/config"
	"github.com/callwright/callwright/internal/tui"
)

func newRunCmd() *cobra.Command {
	var (
		useTUI     bool
		listen     bool
		transcribe bool
	)

	cmd := &cobra.Command{
		Use:   "run [conversation-id...]",
		Short: "Run conversations against the configured agent",
		Long: `Run replays, synthesizes, or improvises conversations against the agent,
judges each transcript when an OpenAI key is available, and saves results
under the configured results directory.

Conversation IDs given as arguments override the configured list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			runType, mode, err := runSelection(cfg)
			if err != nil {
				return err
			}
			if cfg.Platform.WSURL == "" {
				return errors.New("platform.ws_url is not configured")
			}

			ids := args
			if len(ids) == 0 {
				ids = cfg.Conversations.IDs
			}
			if len(ids) == 0 {
				if runType != harness.RunTypeDynamic {
					return errors.New("no conversation ids configured")
				}
				// Dynamic runs have no recording to replay; the ID only
				// labels logs and results.
				ids = []string{"dynamic"}
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			opts, cleanup, err := runnerOptions(ctx, cfg, runType, mode, listen, transcribe)
			if err != nil {
				return err
			}
			defer cleanup()

			rcfg := runnerConfig(cfg, runType, mode)

			if useTUI {
				model := tui.New(fmt.Sprintf("callwright %s run", runType), len(ids),
					func(observe func(harness.StepResult)) ([]harness.RunReport, error) {
						runner := harness.NewRunner(rcfg,
							append(opts, harness.WithStepObserver(observe))...)
						return runner.Run(ctx, ids)
					})
				reports, err := tui.Run(model)
				if errors.Is(err, tui.ErrInterrupted) {
					cancel()
					fmt.Fprintln(os.Stderr, "Run interrupted.")
					return nil
				}
				if err != nil {
					return err
				}
				printReports(reports)
				return summarize(reports)
			}

			opts = append(opts, harness.WithStepObserver(printStep))
			runner := harness.NewRunner(rcfg, opts...)
			reports, err := runner.Run(ctx, ids)
			if err != nil {
				return err
			}
			printReports(reports)
			return summarize(reports)
		},
	}

	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show the live run view")
	cmd.Flags().BoolVar(&listen, "listen", false, "Play agent reply audio during the run")
	cmd.Flags().BoolVar(&transcribe, "transcribe", false, "Transcribe audio-only agent replies with Deepgram")

	return cmd
}

// runSelection validates the configured run type and conversation mode.
func runSelection(cfg *config.Config) (harness.RunType, harness.Mode, error) {
	runType := harness.RunType(cfg.Run.Type)
	if runType == "" {
		runType = harness.RunTypeHuman
	}
	switch runType {
	case harness.RunTypeHuman, harness.RunTypeSynthetic, harness.RunTypeDynamic, harness.RunTypeTranslation:
	default:
		return "", "", fmt.Errorf("unknown run type %q", cfg.Run.Type)
	}

	mode := harness.Mode(cfg.Conversations.Mode)
	if mode == "" {
		mode = harness.ModeVoice
	}
	switch mode {
	case harness.ModeVoice, harness.ModeText:
	default:
		return "", "", fmt.Errorf("unknown conversation mode %q", cfg.Conversations.Mode)
	}

	return runType, mode, nil
}

func runnerConfig(cfg *config.Config, runType harness.RunType, mode harness.Mode) harness.RunnerConfig {
	return harness.RunnerConfig{
		Endpoint:  cfg.Platform.WSURL,
		ChannelID: cfg.Platform.ChannelID,
		RunType:   runType,
		Mode:      mode,
		Scenario:  cfg.Run.Scenario,
		MaxSteps:  cfg.Run.MaxSteps,
		Policy: harness.TurnPolicy{
			Timeout:     time.Duration(cfg.Timeouts.Response) * time.Second,
			SettleDelay: time.Duration(cfg.Timeouts.SettleMS) * time.Millisecond,
		},
		StepDelay:         time.Duration(cfg.Timeouts.StepDelay) * time.Second,
		ConnectTimeout:    time.Duration(cfg.Timeouts.Connect) * time.Second,
		KeepaliveInterval: time.Duration(cfg.Timeouts.Keepalive) * time.Second,
		LogDir:            cfg.Paths.Logs,
		ScratchDir:        cfg.Paths.Synthesis,
	}
}

// runnerOptions assembles the runner's collaborators from the config and
// flags. The returned cleanup releases the audio device, if one was opened.
func runnerOptions(ctx context.Context, cfg *config.Config, runType harness.RunType, mode harness.Mode, listen, transcribe bool) ([]harness.RunnerOption, func(), error) {
	cleanup := func() {}
	opts := []harness.RunnerOption{
		harness.WithResultStore(results.NewStore(cfg.Paths.Results)),
	}

	if cfg.Platform.BaseURL != "" {
		client, err := newPlatformClient(cfg)
		if err != nil {
			return nil, cleanup, err
		}
		opts = append(opts, harness.WithSessionCreator(client))
		if runType == harness.RunTypeHuman {
			opts = append(opts, harness.WithStimulusSource(stimuli.NewArchive(client, cfg.Paths.Downloads)))
		}
	} else if runType == harness.RunTypeHuman {
		return nil, cleanup, errors.New("human runs need platform.base_url configured")
	}

	llm, llmErr := openai.NewClient(openai.WithModel(cfg.LLM.Model))
	if llmErr == nil {
		opts = append(opts, harness.WithEvaluator(evaluation.NewEvaluator(llm)))
	} else if runType == harness.RunTypeDynamic {
		return nil, cleanup, fmt.Errorf("dynamic runs need an LLM: %w", llmErr)
	} else {
		fmt.Fprintln(os.Stderr, "Judging disabled:", llmErr)
	}

	switch runType {
	case harness.RunTypeSynthetic, harness.RunTypeTranslation:
		if cfg.Run.StepsFile == "" {
			return nil, cleanup, fmt.Errorf("%s runs need run.steps_file configured", runType)
		}
		texts, err := stimuli.ParseStepsFile(cfg.Run.StepsFile)
		if err != nil {
			return nil, cleanup, err
		}
		if mode == harness.ModeText {
			opts = append(opts, harness.WithStimulusSource(stimuli.FromTexts(texts)))
			break
		}
		synth, err := buildSynthesizer(cfg)
		if err != nil {
			return nil, cleanup, err
		}
		prepared, err := stimuli.Synthesize(ctx, synth, texts, cfg.Paths.Synthesis)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to synthesize steps: %w", err)
		}
		opts = append(opts, harness.WithStimulusSource(prepared))

	case harness.RunTypeDynamic:
		callerOpts := []dialogue.CallerOption{}
		if cfg.LLM.Temperature > 0 {
			callerOpts = append(callerOpts, dialogue.WithTemperature(cfg.LLM.Temperature))
		}
		opts = append(opts, harness.WithUtteranceGenerator(dialogue.NewCaller(llm, callerOpts...)))
		if mode == harness.ModeVoice {
			synth, err := buildSynthesizer(cfg)
			if err != nil {
				return nil, cleanup, err
			}
			opts = append(opts, harness.WithSynthesizer(synth))
		}
	}

	if transcribe {
		if os.Getenv("DEEPGRAM_API_KEY") == "" {
			return nil, cleanup, errors.New("reply transcription needs DEEPGRAM_API_KEY set")
		}
		opts = append(opts, harness.WithReplyRecognizer(deepgramstt.NewTranscriptionClient(
			speechtotext.WithModel(cfg.STT.Model),
			speechtotext.WithLanguage(cfg.STT.Language),
		)))
	}

	if listen {
		player, err := miniaudio.NewPlayer(audio.GetDefaultEncodingInfo())
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open audio output: %w", err)
		}
		cleanup = func() { _ = player.Close() }
		opts = append(opts, harness.WithAudioMonitor(player))
	}

	return opts, cleanup, nil
}

func printStep(step harness.StepResult) {
	if step.Utterance != "" {
		fmt.Printf("  You:   %s\n", step.Utterance)
	}
	if step.Err != nil {
		fmt.Printf("  step %d failed: %v\n", step.Step, step.Err)
		return
	}
	if step.Outcome.Text != "" {
		fmt.Printf("  Agent: %s\n", step.Outcome.Text)
		return
	}
	fmt.Printf("  Agent: (%s)\n", step.Outcome.Status)
}

func printReports(reports []harness.RunReport) {
	for _, report := range reports {
		line := fmt.Sprintf("%s: %s (%s)", report.ConversationID, report.Outcome,
			report.Duration.Round(time.Millisecond))
		if report.Err != nil {
			line += ", " + report.Err.Error()
		}
		fmt.Println(line)
	}
}

func summarize(reports []harness.RunReport) error {
	passed := 0
	for _, report := range reports {
		if report.Outcome == harness.RunPassed {
			passed++
		}
	}
	fmt.Printf("%d of %d conversations passed\n", passed, len(reports))
	if passed != len(reports) {
		return fmt.Errorf("%d of %d conversations did not pass", len(reports)-passed, len(reports))
	}
	return nil
}
