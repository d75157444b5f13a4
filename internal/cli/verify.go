package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quotewire/quotewire/internal/engine"
	"github.com/quotewire/quotewire/internal/snapshot"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	Snapshot string
}

// VerifyResult holds the verify command result.
type VerifyResult struct {
	ReplayRfqChecksum          uint32 `json:"replay_rfq_checksum"`
	ReplayInstrumentChecksum   uint32 `json:"replay_instrument_checksum"`
	SnapshotRfqChecksum        uint32 `json:"snapshot_rfq_checksum"`
	SnapshotInstrumentChecksum uint32 `json:"snapshot_instrument_checksum"`
	SnapshotComplete           bool   `json:"snapshot_complete"`
	Match                      bool   `json:"match"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a snapshot against a journal replay",
		Long: `Verify that a snapshot matches the state produced by replaying the
full command journal.

The journal is replayed into a fresh engine, the snapshot is restored
into another, and the store checksums and id generator positions of the
two are compared. A snapshot taken at the journal head must match
exactly; any divergence means the snapshot is stale or corrupt.

Exit codes:
  0 - Snapshot matches the journal replay
  1 - Mismatch (stale or corrupt snapshot, incomplete restore)
  2 - Command error (journal or snapshot not found, etc.)

Examples:
  quotewire verify --db ./quotewire.db --snapshot ./state.snap
  quotewire verify --db ./quotewire.db --snapshot ./state.snap --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "path to snapshot file (required)")
	_ = cmd.MarkFlagRequired("snapshot")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	replayed, headTs, err := replayedEngine(ctx, opts.Database)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.Snapshot)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open snapshot file", err)
	}
	defer f.Close()

	// Restore at the journal head's cluster time so past-due RFQs expire
	// the same way they did during replay.
	restored := engine.New(discardResponder{})
	stats, err := snapshot.LoadAll(f, restored, headTs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	result := VerifyResult{
		ReplayRfqChecksum:          replayed.Checksum(),
		ReplayInstrumentChecksum:   replayed.Instruments().Checksum(),
		SnapshotRfqChecksum:        restored.Checksum(),
		SnapshotInstrumentChecksum: restored.Instruments().Checksum(),
		SnapshotComplete:           stats.Complete,
	}
	result.Match = stats.Complete && statesMatch(replayed, restored)

	if opts.Format == "json" {
		return outputVerifyJSON(cmd, result)
	}
	return outputVerifyText(cmd, result, opts.Verbose)
}

// outputVerifyJSON outputs the verify result as JSON.
func outputVerifyJSON(cmd *cobra.Command, result VerifyResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.Match {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_VERIFY",
			Message: "snapshot does not match journal replay",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Match {
		return NewExitError(ExitFailure, "snapshot does not match journal replay")
	}
	return nil
}

// outputVerifyText outputs the verify result as text.
func outputVerifyText(cmd *cobra.Command, result VerifyResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if verbose || !result.Match {
		fmt.Fprintf(w, "Replay:   rfq=%08x instrument=%08x\n", result.ReplayRfqChecksum, result.ReplayInstrumentChecksum)
		fmt.Fprintf(w, "Snapshot: rfq=%08x instrument=%08x complete=%v\n", result.SnapshotRfqChecksum, result.SnapshotInstrumentChecksum, result.SnapshotComplete)
	}

	if result.Match {
		fmt.Fprintln(w, "✓ Snapshot matches journal replay")
		return nil
	}

	fmt.Fprintln(w, "✗ Snapshot does not match journal replay")
	return NewExitError(ExitFailure, "snapshot does not match journal replay")
}
