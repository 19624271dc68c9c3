package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jarvis/internal/audio"
	"jarvis/internal/llm"
	"jarvis/internal/speaker"
	"jarvis/internal/tts"
	"jarvis/internal/vad"
)

func newSayCommand(opts *globalOptions) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "say <text>",
		Short: "Synthesize text and play it, or save it with --out",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			synth, err := opts.newSynthesizer()
			if err != nil {
				return err
			}

			if outFile != "" {
				data, err := synth.Synthesize(cmd.Context(), text)
				if err != nil {
					return err
				}
				if !strings.Contains(outFile, ".") {
					outFile += tts.FileExtension(opts.cfg.TTS.Format)
				}
				if err := tts.SaveAudio(data, outFile); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %d bytes to %s\n", len(data), outFile)
				return nil
			}

			manager := audio.GetManager()
			sink := audio.NewPortAudioSink(manager, opts.cfg.Audio.OutputSampleRate)
			spk := speaker.New(opts.cfg.Speaker, sink, synth, nil, nil, opts.log)
			spk.Say(cmd.Context(), text, false)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the audio to this file instead of playing it")
	return cmd
}

func newTranscribeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stt, err := opts.newTranscriber()
			if err != nil {
				return err
			}
			text, err := stt.TranscribeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newAskCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the answer service a question and print the reply with its sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answerer, err := opts.newAnswerer()
			if err != nil {
				return err
			}
			answer, err := answerer.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, llm.FormatSources(answer.Sources))
			}
			return nil
		},
	}
}

func newVADCommand(opts *globalOptions) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "vad <file.wav>",
		Short: "Check a Silero VAD server and run detection on a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = opts.cfg.VAD.ServerURL
			}
			if server == "" {
				return fmt.Errorf("no VAD server: set vad.server_url, VAD_SERVER_URL or --server")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			client := vad.NewClient(server, opts.cfg.VAD.Timeout)

			health, err := client.Health(ctx)
			if err != nil {
				return fmt.Errorf("VAD server health check failed: %w", err)
			}
			fmt.Fprintf(out, "server: %s (%s)\n", health.Status, health.Timestamp)

			if info, err := client.Info(ctx); err != nil {
				opts.log.Warn("failed to get model info", "err", err)
			} else {
				fmt.Fprintf(out, "model: %s, %d Hz, %d ms window\n", info.ModelName, info.SampleRate, info.WindowSizeMs)
			}

			resp, err := client.DetectFromFile(ctx, args[0], &vad.DetectRequest{
				Threshold:            opts.cfg.VAD.Threshold,
				MinSpeechDurationMs:  opts.cfg.VAD.MinSpeechDurationMs,
				MinSilenceDurationMs: opts.cfg.VAD.MinSilenceDurationMs,
			})
			if err != nil {
				return err
			}
			st := resp.Statistics
			fmt.Fprintf(out, "audio: %.2fs, speech: %.2fs (%.1f%%), %d segments\n",
				st.TotalAudioDuration, st.TotalSpeechDuration, st.SpeechRatio*100, len(resp.SpeechSegments))
			for i, seg := range resp.SpeechSegments {
				fmt.Fprintf(out, "  %d. %.2fs - %.2fs\n", i+1, seg.Start, seg.End)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "VAD server URL (defaults to vad.server_url)")
	return cmd
}
