package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quotewire/quotewire/internal/engine"
	"github.com/quotewire/quotewire/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	AfterSeq int64 // replay only entries after this seq
}

// ReplayResult holds the replay command result.
type ReplayResult struct {
	Commands           int64  `json:"commands"`
	Applied            int    `json:"applied"`
	Rejected           int    `json:"rejected"`
	Expired            int    `json:"expired"`
	LastSeq            int64  `json:"last_seq"`
	RfqChecksum        uint32 `json:"rfq_checksum"`
	InstrumentChecksum uint32 `json:"instrument_checksum"`
	NextRfqID          int64  `json:"next_rfq_id"`
	Deterministic      bool   `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the command journal and verify determinism",
		Long: `Rebuild engine state from the command journal and verify determinism.

The journal is replayed twice into two fresh engines. Both replays must
produce identical store checksums and id generator positions; any
divergence means a non-deterministic code path leaked into the core.

Exit codes:
  0 - Replay is deterministic
  1 - Determinism verification failed (checksums differ between replays)
  2 - Command error (journal not found, corrupt entry, etc.)

Examples:
  quotewire replay --db ./quotewire.db
  quotewire replay --db ./quotewire.db --after-seq 100
  quotewire replay --db ./quotewire.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().Int64Var(&opts.AfterSeq, "after-seq", 0, "replay only entries after this journal seq")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	count, err := j.Count(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count journal entries", err)
	}

	first, firstStats, err := replayFresh(ctx, j, opts.AfterSeq)
	if err != nil {
		return WrapExitError(ExitCommandError, "first replay failed", err)
	}
	second, _, err := replayFresh(ctx, j, opts.AfterSeq)
	if err != nil {
		return WrapExitError(ExitCommandError, "second replay failed", err)
	}

	result := ReplayResult{
		Commands:           count,
		Applied:            firstStats.Applied,
		Rejected:           firstStats.Rejected,
		Expired:            firstStats.Expired,
		LastSeq:            firstStats.LastSeq,
		RfqChecksum:        first.Checksum(),
		InstrumentChecksum: first.Instruments().Checksum(),
		NextRfqID:          first.NextRfqID(),
		Deterministic:      statesMatch(first, second),
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayFresh replays the journal into a brand-new engine with output
// suppressed.
func replayFresh(ctx context.Context, j *journal.Journal, afterSeq int64) (*engine.Engine, journal.ReplayStats, error) {
	e := engine.New(discardResponder{})
	e.BeginRestore()
	defer e.EndRestore()
	stats, err := journal.Replay(ctx, j, e, afterSeq)
	return e, stats, err
}

// statesMatch compares the cross-replica comparison handles of two engines.
func statesMatch(a, b *engine.Engine) bool {
	return a.Checksum() == b.Checksum() &&
		a.Instruments().Checksum() == b.Instruments().Checksum() &&
		a.NextRfqID() == b.NextRfqID()
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Deterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d command(s), %d applied, %d rejected\n", result.Commands, result.Applied, result.Rejected)

	if verbose {
		fmt.Fprintf(w, "  Expired: %d\n", result.Expired)
		fmt.Fprintf(w, "  Last seq: %d\n", result.LastSeq)
		fmt.Fprintf(w, "  RFQ checksum: %08x\n", result.RfqChecksum)
		fmt.Fprintf(w, "  Instrument checksum: %08x\n", result.InstrumentChecksum)
		fmt.Fprintf(w, "  Next RFQ id: %d\n", result.NextRfqID)
	}

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
