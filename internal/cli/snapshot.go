package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quotewire/quotewire/internal/engine"
	"github.com/quotewire/quotewire/internal/journal"
	"github.com/quotewire/quotewire/internal/snapshot"
)

// SnapshotDumpOptions holds flags for snapshot dump.
type SnapshotDumpOptions struct {
	*RootOptions
	Database string
	Out      string
}

// SnapshotLoadOptions holds flags for snapshot load.
type SnapshotLoadOptions struct {
	*RootOptions
	In   string
	AtMs int64
}

// SnapshotDumpResult holds the dump command result.
type SnapshotDumpResult struct {
	Out                string `json:"out"`
	Instruments        int    `json:"instruments"`
	Rfqs               int    `json:"rfqs"`
	RfqChecksum        uint32 `json:"rfq_checksum"`
	InstrumentChecksum uint32 `json:"instrument_checksum"`
}

// SnapshotLoadResult holds the load command result.
type SnapshotLoadResult struct {
	In                 string `json:"in"`
	Instruments        int    `json:"instruments"`
	Rfqs               int    `json:"rfqs"`
	Complete           bool   `json:"complete"`
	RfqChecksum        uint32 `json:"rfq_checksum"`
	InstrumentChecksum uint32 `json:"instrument_checksum"`
	NextRfqID          int64  `json:"next_rfq_id"`
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Dump and load engine state snapshots",
		Long: `Dump and load canonical-JSON state snapshots.

A snapshot is a stream of canonical JSON lines: one line per instrument,
one per RFQ, and a content-addressed end marker carrying record counts
and store checksums. "dump" rebuilds state from a journal and writes the
snapshot; "load" restores a snapshot into a fresh engine and reports
what it found.`,
	}

	cmd.AddCommand(newSnapshotDumpCommand(rootOpts))
	cmd.AddCommand(newSnapshotLoadCommand(rootOpts))

	return cmd
}

func newSnapshotDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotDumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write a snapshot of journal-replayed state",
		Long: `Replay the command journal into a fresh engine and write its state
as a canonical-JSON snapshot.

Exit codes:
  0 - Snapshot written
  2 - Command error (journal not found, write failure, etc.)

Examples:
  quotewire snapshot dump --db ./quotewire.db --out ./state.snap
  quotewire snapshot dump --db ./quotewire.db --out ./state.snap --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotDump(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Out, "out", "", "snapshot output path (required)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func newSnapshotLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotLoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a snapshot and report the restored state",
		Long: `Restore a snapshot into a fresh engine and report what was loaded.

A missing end marker or malformed trailing record degrades to a partial
restore, reported as complete=false.

Exit codes:
  0 - Snapshot loaded completely
  1 - Partial restore (missing end marker or malformed record)
  2 - Command error (file not found, etc.)

Examples:
  quotewire snapshot load --in ./state.snap
  quotewire snapshot load --in ./state.snap --at-ms 1700000000000`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotLoad(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.In, "in", "", "snapshot input path (required)")
	_ = cmd.MarkFlagRequired("in")
	cmd.Flags().Int64Var(&opts.AtMs, "at-ms", 0, "cluster time of the restore; open RFQs past their deadline expire")

	return cmd
}

func runSnapshotDump(opts *SnapshotDumpOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	e, _, err := replayedEngine(ctx, opts.Database)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create snapshot file", err)
	}
	defer f.Close()

	if err := snapshot.WriteAll(f, e); err != nil {
		return WrapExitError(ExitCommandError, "failed to write snapshot", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to flush snapshot file", err)
	}

	result := SnapshotDumpResult{
		Out:                opts.Out,
		Instruments:        e.Instruments().Count(),
		Rfqs:               e.Rfqs().Count(),
		RfqChecksum:        e.Checksum(),
		InstrumentChecksum: e.Instruments().Checksum(),
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Snapshot written to %s: %d instrument(s), %d RFQ(s)\n", result.Out, result.Instruments, result.Rfqs)
	return nil
}

func runSnapshotLoad(opts *SnapshotLoadOptions, cmd *cobra.Command) error {
	f, err := os.Open(opts.In)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open snapshot file", err)
	}
	defer f.Close()

	e := engine.New(discardResponder{})
	stats, err := snapshot.LoadAll(f, e, opts.AtMs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	result := SnapshotLoadResult{
		In:                 opts.In,
		Instruments:        stats.Instruments,
		Rfqs:               stats.Rfqs,
		Complete:           stats.Complete,
		RfqChecksum:        e.Checksum(),
		InstrumentChecksum: e.Instruments().Checksum(),
		NextRfqID:          e.NextRfqID(),
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		mark := "✓"
		if !result.Complete {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s Loaded %d instrument(s), %d RFQ(s) from %s (complete=%v)\n", mark, result.Instruments, result.Rfqs, result.In, result.Complete)
		if opts.Verbose {
			fmt.Fprintf(w, "  RFQ checksum: %08x\n", result.RfqChecksum)
			fmt.Fprintf(w, "  Instrument checksum: %08x\n", result.InstrumentChecksum)
			fmt.Fprintf(w, "  Next RFQ id: %d\n", result.NextRfqID)
		}
	}

	if !result.Complete {
		return NewExitError(ExitFailure, "partial snapshot restore")
	}
	return nil
}

// replayedEngine rebuilds state from a journal with output suppressed. The
// second return is the cluster time of the journal head, the time the
// rebuilt state represents.
func replayedEngine(ctx context.Context, dbPath string) (*engine.Engine, int64, error) {
	j, err := journal.Open(dbPath)
	if err != nil {
		return nil, 0, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	headTs, err := j.LastClusterTs(ctx)
	if err != nil {
		return nil, 0, WrapExitError(ExitCommandError, "failed to read journal head", err)
	}
	e, _, err := replayFresh(ctx, j, 0)
	if err != nil {
		return nil, 0, WrapExitError(ExitCommandError, "journal replay failed", err)
	}
	return e, headTs, nil
}
