// interviewctl drives an interview session from the terminal, against a
// running interview service. It is a development tool: text sessions read
// turns from stdin, voice sessions replay a recorded PCM file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagServer string
	flagJob    string
	flagToken  string
	flagUser   string
	flagKind   string
)

func main() {
	root := &cobra.Command{
		Use:           "interviewctl",
		Short:         "Run mock interview sessions against an interview service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", "ws://localhost:8080", "interview service base URL")
	root.PersistentFlags().StringVar(&flagJob, "job", "", "job reference (numeric id)")
	root.PersistentFlags().StringVar(&flagToken, "token", os.Getenv("INTERVIEW_TOKEN"), "access token")
	root.PersistentFlags().StringVar(&flagUser, "user", "", "user id (overrides token subject)")
	root.PersistentFlags().StringVar(&flagKind, "kind", "technical", "interview kind: technical|behavioral")

	root.AddCommand(newTextCmd(), newVoiceCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
