package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/careerflow/interview/internal/audio"
	"github.com/careerflow/interview/internal/client"
	"github.com/careerflow/interview/internal/protocol"
)

func newVoiceCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		mute       bool
	)

	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Run a voice interview session, replaying a raw PCM file as the microphone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagJob == "" {
				return errors.New("--job is required")
			}
			if inputPath == "" {
				return errors.New("--input is required (raw little-endian int16 PCM, 16 kHz mono)")
			}

			var out io.Writer = io.Discard
			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				out = f
			}

			done := make(chan struct{})
			var finish sync.Once
			c := client.New(client.Options{
				ServerURL:   flagServer,
				JobRef:      flagJob,
				Mode:        client.ModeVoice,
				Kind:        sessionKind(),
				AccessToken: flagToken,
				UserID:      flagUser,
				Capture:     &audio.PCMFileSource{Path: inputPath},
				Player:      &audio.WriterPlayer{W: out},
				Logger:      quietLogger(),
				Events: client.Events{
					OnConfig: func(jobTitle string) {
						fmt.Println("interviewing for:", jobTitle)
					},
					OnStage: func(stage string) {
						fmt.Println("[stage]", stage)
					},
					OnAudioState: func(state string) {
						fmt.Println("[audio]", state)
					},
					OnTranscript: func(e client.TranscriptEntry) {
						fmt.Printf("%s: %s\n", e.Role, e.Content)
					},
					OnFeedback: func(fb *protocol.Feedback) {
						printFeedback(fb)
						finish.Do(func() { close(done) })
					},
					OnError: func(err error) {
						fmt.Fprintln(os.Stderr, "session error:", err)
					},
					OnState: func(s client.State) {
						if s == client.StateIdle {
							finish.Do(func() { close(done) })
						}
					},
				},
			})

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := c.Start(ctx); err != nil {
				return err
			}
			defer c.End()
			c.SetMuted(mute)

			select {
			case <-ctx.Done():
			case <-done:
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to raw PCM file replayed as microphone input")
	cmd.Flags().StringVar(&outputPath, "output", "", "path to write received interviewer audio (raw PCM)")
	cmd.Flags().BoolVar(&mute, "mute", false, "start the session muted")
	return cmd
}
