package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quotewire/quotewire/internal/canon"
	"github.com/quotewire/quotewire/internal/engine"
	"github.com/quotewire/quotewire/internal/journal"
	"github.com/quotewire/quotewire/internal/rfq"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Catalog  string
	Input    string
}

// RunSummary holds the run command result.
type RunSummary struct {
	Replayed           int    `json:"replayed"`
	Applied            int    `json:"applied"`
	Rejected           int    `json:"rejected"`
	Expired            int    `json:"expired"`
	RfqChecksum        uint32 `json:"rfq_checksum"`
	InstrumentChecksum uint32 `json:"instrument_checksum"`
	NextRfqID          int64  `json:"next_rfq_id"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a journal-backed engine loop",
		Long: `Run an engine fed by JSON command lines, journaling every command.

Existing journal entries are replayed first, then the optional CUE
instrument catalog is seeded, then commands are read one per line from
the input (stdin by default):

  {"type":"CreateRfq","cusip":"912828YK0","side":"BUY","quantity":200,
   "requester_user_id":500,"expire_time_ms":60000,"correlation":"c-1"}

An "at_ms" field pins the command's cluster time; without it the wall
clock is used. Cluster time never moves backward. A missing correlation
token is filled in with a generated UUID. Rejections are logged and the
loop continues; RFQ deadlines that pass between commands fire expiries.

Exit codes:
  0 - Input drained
  2 - Command error (journal not found, unreadable input, etc.)

Examples:
  quotewire run --db ./quotewire.db --catalog ./catalog < commands.jsonl
  quotewire run --db ./quotewire.db --input ./commands.jsonl`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE instrument catalog directory to seed")
	cmd.Flags().StringVar(&opts.Input, "input", "-", "command input file (\"-\" for stdin)")

	return cmd
}

func runLoop(opts *RunOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	log := slog.Default()

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	responder := newLoopResponder(log)
	eng := engine.New(responder)

	// Rebuild from the journal before going live.
	eng.BeginRestore()
	stats, err := journal.Replay(ctx, j, eng, 0)
	eng.EndRestore()
	if err != nil {
		return WrapExitError(ExitCommandError, "journal replay failed", err)
	}

	tokens := rfq.NewUUIDGenerator()
	clock := newClusterClock()

	summary := RunSummary{Replayed: stats.Applied + stats.Rejected}

	if opts.Catalog != "" {
		if err := seedCatalog(ctx, j, eng, opts.Catalog, &summary, log); err != nil {
			return err
		}
	}

	input := cmd.InOrStdin()
	if opts.Input != "-" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		input = f
	}

	if err := drainCommands(ctx, j, eng, responder, input, tokens, clock, &summary, log); err != nil {
		return err
	}

	summary.RfqChecksum = eng.Checksum()
	summary.InstrumentChecksum = eng.Instruments().Checksum()
	summary.NextRfqID = eng.NextRfqID()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Run complete: %d replayed, %d applied, %d rejected, %d expired\n",
		summary.Replayed, summary.Applied, summary.Rejected, summary.Expired)
	return nil
}

// clusterClock is the run loop's stand-in for replicated cluster time:
// wall clock by default, pinned by "at_ms", never moving backward. It
// starts at zero so fully pinned inputs (tests, reproductions) never see
// the wall clock at all.
type clusterClock struct {
	nowMs int64
}

func newClusterClock() *clusterClock {
	return &clusterClock{}
}

// advance moves the clock to atMs (or the wall clock when atMs is zero),
// refusing to go backward.
func (c *clusterClock) advance(atMs int64) int64 {
	next := atMs
	if next == 0 {
		next = time.Now().UnixMilli()
	}
	if next > c.nowMs {
		c.nowMs = next
	}
	return c.nowMs
}

// now returns the current cluster time without advancing it.
func (c *clusterClock) now() int64 {
	return c.nowMs
}

// seedCatalog journals and applies an AddInstrument for every catalog
// entry, all at cluster time zero so re-seeding an unchanged catalog
// dedupes in the journal. Instruments already present from the replay
// no-op in the engine too.
func seedCatalog(ctx context.Context, j *journal.Journal, eng *engine.Engine, dir string, summary *RunSummary, log *slog.Logger) error {
	result, loadErrors := LoadCatalog(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to load catalog", loadErrors[0])
	}

	for _, inst := range result.Instruments {
		cmd := rfq.AddInstrument{
			Cusip:       inst.Cusip,
			SecurityID:  inst.SecurityID,
			Enabled:     inst.Enabled,
			MinSize:     inst.MinSize,
			Correlation: "catalog:" + inst.Cusip,
		}
		if err := journalAndApply(ctx, j, eng, cmd, 0, summary, log); err != nil {
			return err
		}
	}
	log.Info("catalog seeded", "instruments", len(result.Instruments))
	return nil
}

// drainCommands reads JSON command lines until EOF, journaling and
// applying each, firing due expiry timers as cluster time advances.
func drainCommands(ctx context.Context, j *journal.Journal, eng *engine.Engine, responder *loopResponder, input io.Reader, tokens rfq.CorrelationGenerator, clock *clusterClock, summary *RunSummary, log *slog.Logger) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		cmd, atMs, err := parseCommandLine(raw, tokens)
		if err != nil {
			log.Warn("skipping malformed command", "line", line, "err", err)
			continue
		}

		nowMs := clock.advance(atMs)
		fireDueTimers(eng, responder, nowMs, summary)

		if err := journalAndApply(ctx, j, eng, cmd, nowMs, summary, log); err != nil {
			return err
		}
		fireDueTimers(eng, responder, nowMs, summary)
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}

	// Drain timers one last time before reporting. Uses the clock as-is:
	// jumping to the wall clock here would spuriously expire RFQs in a
	// fully pinned input.
	fireDueTimers(eng, responder, clock.now(), summary)
	return nil
}

// parseCommandLine decodes one JSON command line, filling in a generated
// correlation token when absent and extracting the optional "at_ms" pin.
func parseCommandLine(raw []byte, tokens rfq.CorrelationGenerator) (rfq.Command, int64, error) {
	v, err := canon.Unmarshal(raw)
	if err != nil {
		return nil, 0, err
	}
	obj, ok := v.(canon.Obj)
	if !ok {
		return nil, 0, fmt.Errorf("command line is not an object")
	}

	var atMs int64
	if at, ok := obj["at_ms"].(canon.Int); ok {
		atMs = int64(at)
	}
	delete(obj, "at_ms")

	if _, ok := obj["correlation"]; !ok {
		obj["correlation"] = canon.Str(tokens.Generate())
	}

	cmd, err := rfq.DecodeCommandObj(obj)
	if err != nil {
		return nil, 0, err
	}
	return cmd, atMs, nil
}

// journalAndApply appends the command to the journal, then applies it.
// Journal write failures abort the loop; rejections are logged and
// counted but do not.
func journalAndApply(ctx context.Context, j *journal.Journal, eng *engine.Engine, cmd rfq.Command, nowMs int64, summary *RunSummary, log *slog.Logger) error {
	seq, inserted, err := j.Append(ctx, cmd, nowMs)
	if err != nil {
		return WrapExitError(ExitCommandError, "journal append failed", err)
	}
	if !inserted {
		log.Info("duplicate command, already journaled", "name", cmd.Name(), "seq", seq)
	}

	if err := eng.Apply(cmd, nowMs); err != nil {
		if engine.IsReject(err) {
			summary.Rejected++
			log.Warn("command rejected", "name", cmd.Name(), "seq", seq, "err", err)
			return nil
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("apply %s failed", cmd.Name()), err)
	}
	summary.Applied++
	return nil
}

// fireDueTimers delivers expiry callbacks for deadlines that have passed.
func fireDueTimers(eng *engine.Engine, responder *loopResponder, nowMs int64, summary *RunSummary) {
	for _, rfqID := range responder.due(nowMs) {
		eng.OnTimerFire(rfqID, nowMs)
		summary.Expired++
	}
}
