package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pinpoint <query>",
		Short:        "Find the exact moments in online videos that answer a question",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	// Visible flags; each overrides its environment variable.
	f := root.Flags()
	f.Bool("json", false, "Print the result as JSON")
	f.BoolP("quiet", "q", false, "Suppress progress logs")
	f.Int("final", 0, "Number of segments to return (MAX_FINAL_RESULTS)")
	f.Float64("min-confidence", -1, "Drop candidates below this confidence (MIN_CONFIDENCE)")
	f.Int("workers", 0, "Parallel workers (WORKERS)")
	f.Bool("no-refine", false, "Skip clip-level refinement")
	f.Bool("no-fallback", false, "Skip video analysis for videos without transcripts")
	f.Bool("summary", false, "Add an integrated summary of all segments")
	f.String("reel", "", "Write a highlight reel to this file or directory")
	f.Bool("merge", false, "Merge overlapping segments of the same video")

	// Hidden tuning flags
	f.String("refine-order", "", "confidence, search or shortest")
	f.Int("refine-budget", -1, "Refine at most this many candidates (0 = all)")
	f.String("published-after", "", "RFC3339 lower bound on publish time")
	_ = f.MarkHidden("refine-order")
	_ = f.MarkHidden("refine-budget")
	_ = f.MarkHidden("published-after")

	return root
}
