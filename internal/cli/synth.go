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

	"github.com/callwright/callwright/core/audio"
	"github.com/callwright/callwright/core/stimuli"
	"github.com/callwright/callwright/core/texttospeech"
	deepgramtts "github.com/callwright/callwright/core/texttospeech/deepgram"
	"github.com/callwright/callwright/core/texttospeech/googletrans"
	"github.com/callwright/callwright/core/texttospeech/tone"
	"github.com/callwright/callwright/internal/config"
)

func newSynthCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "synth [steps-file]",
		Short: "Synthesize a steps file into WAV audio",
		Long: `Synth renders each line of a steps file to a WAV file with the configured
engine, without running a conversation. The steps file argument overrides
run.steps_file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			stepsFile := cfg.Run.StepsFile
			if len(args) == 1 {
				stepsFile = args[0]
			}
			if stepsFile == "" {
				return errors.New("no steps file given (run.steps_file or argument)")
			}

			texts, err := stimuli.ParseStepsFile(stepsFile)
			if err != nil {
				return err
			}

			synth, err := buildSynthesizer(cfg)
			if err != nil {
				return err
			}

			dir := cfg.Paths.Synthesis
			if outDir != "" {
				dir = outDir
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			prepared, err := stimuli.Synthesize(ctx, synth, texts, dir)
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

	return cmd
}

// buildSynthesizer picks the configured TTS engine. The zero-value knobs
// fall through to each engine's defaults; extra options are applied after
// the config and override it.
func buildSynthesizer(cfg *config.Config, extra ...texttospeech.SynthesisOption) (texttospeech.Synthesizer, error) {
	opts := []texttospeech.SynthesisOption{
		texttospeech.WithLanguage(cfg.TTS.Language),
		texttospeech.WithAccent(cfg.TTS.Accent),
	}
	if cfg.TTS.Speed > 0 {
		opts = append(opts, texttospeech.WithSpeed(cfg.TTS.Speed))
	}
	if cfg.TTS.MinDuration > 0 {
		opts = append(opts, texttospeech.WithMinDuration(time.Duration(cfg.TTS.MinDuration)*time.Second))
	}
	if cfg.TTS.SampleRate > 0 {
		opts = append(opts, texttospeech.WithEncodingInfo(audio.EncodingInfo{
			SampleRate: cfg.TTS.SampleRate,
			Encoding:   audio.EncodingLinear16,
		}))
	}
	opts = append(opts, extra...)

	switch cfg.TTS.Engine {
	case "", "googletrans":
		return googletrans.NewClient(opts...), nil
	case "deepgram":
		if os.Getenv("DEEPGRAM_API_KEY") == "" {
			return nil, errors.New("deepgram synthesis needs DEEPGRAM_API_KEY set")
		}
		return deepgramtts.NewTextToSpeechClient(deepgramtts.Voice(cfg.TTS.Voice), opts...)
	case "tone":
		return tone.NewSynthesizer(opts...), nil
	default:
		return nil, fmt.Errorf("unknown tts engine %q", cfg.TTS.Engine)
	}
}
