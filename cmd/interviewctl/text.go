package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/careerflow/interview/internal/client"
	"github.com/careerflow/interview/internal/protocol"
)

func sessionKind() client.Kind {
	if strings.EqualFold(flagKind, "behavioral") {
		return client.KindBehavioral
	}
	return client.KindTechnical
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}

func printFeedback(fb *protocol.Feedback) {
	fmt.Printf("\n=== Feedback ===\nScore:   %d/100\nVerdict: %s\n", fb.Score, fb.Verdict)
	if fb.Summary != "" {
		fmt.Println("Summary:", fb.Summary)
	}
	for _, s := range fb.Strengths {
		fmt.Println("  +", s)
	}
	for _, s := range fb.Improvements {
		fmt.Println("  -", s)
	}
}

func newTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text",
		Short: "Run a text interview session, reading turns from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagJob == "" {
				return errors.New("--job is required")
			}

			done := make(chan struct{})
			var finish sync.Once
			c := client.New(client.Options{
				ServerURL:   flagServer,
				JobRef:      flagJob,
				Mode:        client.ModeText,
				Kind:        sessionKind(),
				AccessToken: flagToken,
				UserID:      flagUser,
				Logger:      quietLogger(),
				Events: client.Events{
					OnConfig: func(jobTitle string) {
						fmt.Println("interviewing for:", jobTitle)
					},
					OnStage: func(stage string) {
						fmt.Println("[stage]", stage)
					},
					OnTranscript: func(e client.TranscriptEntry) {
						if e.Role == "assistant" {
							fmt.Println("\ninterviewer:", e.Content)
							fmt.Print("> ")
						}
					},
					OnThinking: func(active bool) {
						if active {
							fmt.Print("...")
						}
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

			go func() {
				sc := bufio.NewScanner(os.Stdin)
				for sc.Scan() {
					line := strings.TrimSpace(sc.Text())
					if line == "" {
						continue
					}
					if err := c.SendText(line); err != nil {
						fmt.Fprintln(os.Stderr, "send failed:", err)
						return
					}
				}
			}()

			select {
			case <-ctx.Done():
			case <-done:
			}
			return nil
		},
	}
}
