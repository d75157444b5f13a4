package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/quotewire/quotewire/internal/rfq"
)

func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer j.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		j.Close()
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	j := createTestJournal(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"foreign_keys": "1",
	}
	for name, expected := range checks {
		if err := j.verifyPragma(name, expected); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	j := createTestJournal(t)

	var version int
	if err := j.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, expected %d", version, currentSchemaVersion)
	}
}

func TestAppend_AssignsSequentialSeqs(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		seq, inserted, err := j.Append(ctx, rfq.CreateRfq{
			Cusip: "912828YK0", Side: rfq.SideBuy, Quantity: 200,
			RequesterUserID: 500, ExpireTimeMs: 60_000,
			Correlation: string(rune('a' + i)),
		}, 1000*i)
		if err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
		if !inserted {
			t.Errorf("Append() inserted = false, expected true")
		}
		if seq != i {
			t.Errorf("seq = %d, expected %d", seq, i)
		}
	}
}

func TestAppend_DeduplicatesRedelivery(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	cmd := rfq.QuoteRfq{RfqID: 1, ResponderUserID: 700, Price: 100, Correlation: "q1"}

	seq1, inserted, err := j.Append(ctx, cmd, 2000)
	if err != nil {
		t.Fatalf("first Append() failed: %v", err)
	}
	if !inserted {
		t.Error("first Append() inserted = false")
	}

	seq2, inserted, err := j.Append(ctx, cmd, 2000)
	if err != nil {
		t.Fatalf("second Append() failed: %v", err)
	}
	if inserted {
		t.Error("redelivered Append() inserted = true, expected false")
	}
	if seq1 != seq2 {
		t.Errorf("redelivery seq = %d, expected existing %d", seq2, seq1)
	}

	count, err := j.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, expected 1", count)
	}
}

func TestAppend_SameCommandDifferentClusterTime(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	cmd := rfq.CancelRfq{RfqID: 1, UserID: 500, Correlation: "x"}

	if _, _, err := j.Append(ctx, cmd, 1000); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	_, inserted, err := j.Append(ctx, cmd, 2000)
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if !inserted {
		t.Error("distinct cluster time should journal as a new command")
	}
}

func TestReadAll_RoundTripsCommands(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	commands := []rfq.Command{
		rfq.AddInstrument{Cusip: "912828YK0", SecurityID: 42, Enabled: true, MinSize: 100, Correlation: "s1"},
		rfq.CreateRfq{Cusip: "912828YK0", Side: rfq.SideBuy, Quantity: 200, RequesterUserID: 500, ExpireTimeMs: 60_000, Correlation: "c1"},
		rfq.QuoteRfq{RfqID: 1, ResponderUserID: 700, Price: 100, Correlation: "q1"},
	}
	for i, cmd := range commands {
		if _, _, err := j.Append(ctx, cmd, int64(1000*(i+1))); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	entries, err := j.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(entries) != len(commands) {
		t.Fatalf("len(entries) = %d, expected %d", len(entries), len(commands))
	}
	for i, entry := range entries {
		if entry.Seq != int64(i+1) {
			t.Errorf("entry %d seq = %d, expected %d", i, entry.Seq, i+1)
		}
		if entry.ClusterTsMs != int64(1000*(i+1)) {
			t.Errorf("entry %d cluster ts = %d, expected %d", i, entry.ClusterTsMs, 1000*(i+1))
		}
		if entry.Command != commands[i] {
			t.Errorf("entry %d command = %+v, expected %+v", i, entry.Command, commands[i])
		}
	}
}

func TestReadFrom_SkipsPastSeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := j.Append(ctx, rfq.ListInstruments{
			Correlation: string(rune('a' + i)),
		}, int64(1000*(i+1))); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	entries, err := j.ReadFrom(ctx, 2)
	if err != nil {
		t.Fatalf("ReadFrom() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, expected 1", len(entries))
	}
	if entries[0].Seq != 3 {
		t.Errorf("seq = %d, expected 3", entries[0].Seq)
	}
}

func TestLastSeq_EmptyJournal(t *testing.T) {
	j := createTestJournal(t)

	seq, err := j.LastSeq(context.Background())
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("seq = %d, expected 0", seq)
	}
}

func TestLastSeq_AfterAppends(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := j.Append(ctx, rfq.ListInstruments{
			Correlation: string(rune('a' + i)),
		}, int64(i+1)); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	seq, err := j.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 2 {
		t.Errorf("seq = %d, expected 2", seq)
	}
}

func TestLastClusterTs_EmptyJournal(t *testing.T) {
	j := createTestJournal(t)

	ts, err := j.LastClusterTs(context.Background())
	if err != nil {
		t.Fatalf("LastClusterTs() failed: %v", err)
	}
	if ts != 0 {
		t.Errorf("ts = %d, expected 0", ts)
	}
}

func TestLastClusterTs_TracksNewestEntry(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	if _, _, err := j.Append(ctx, rfq.ListInstruments{Correlation: "a"}, 1000); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if _, _, err := j.Append(ctx, rfq.ListInstruments{Correlation: "b"}, 2500); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	ts, err := j.LastClusterTs(ctx)
	if err != nil {
		t.Fatalf("LastClusterTs() failed: %v", err)
	}
	if ts != 2500 {
		t.Errorf("ts = %d, expected 2500", ts)
	}
}
