package cmd

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/portmon/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args. Commands share package flag
// state, so these tests do not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, logLevel, dbPath, noJournal = "", "", "", false
	positionsSave, snapshotFile = "", ""
	ordersHistory = 10

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portmon.yaml")

	out, err := execute(t, "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	out, err = execute(t, "config", "validate", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "127.0.0.1:7497#1")
	assert.Contains(t, out, "Trading: paper")
}

func TestConfigValidateRejectsUnconfirmedLive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading:\n  live_trading: true\n"), 0o600))

	_, err := execute(t, "config", "validate", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "I_UNDERSTAND_THE_RISKS")
}

func TestSummary(t *testing.T) {
	out, err := execute(t, "summary", "--no-journal")
	require.NoError(t, err)
	assert.Contains(t, out, "Net liquidation")
	assert.Contains(t, out, "Risk score")
}

func TestPositionsSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.csv")

	out, err := execute(t, "positions", "--no-journal", "--save", path)
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "Saved 3 positions")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSnapshotWritesFileAndJournal(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "snap.yaml")
	db := filepath.Join(dir, "portmon.db")

	out, err := execute(t, "snapshot", "--db", db, "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, file)

	rec, err := journal.ReadSnapshotFile(file)
	require.NoError(t, err)
	assert.Len(t, rec.Positions, 3)

	j, err := journal.NewSQLite(db)
	require.NoError(t, err)
	defer j.Close()
	snap, err := j.LatestSnapshot()
	require.NoError(t, err)
	assert.Equal(t, rec.ID, snap.Account.ID)
}

func TestOrdersAndConnection(t *testing.T) {
	out, err := execute(t, "orders", "--no-journal")
	require.NoError(t, err)
	assert.Contains(t, out, "No working orders")

	out, err = execute(t, "test-connection", "--no-journal")
	require.NoError(t, err)
	assert.Contains(t, out, "Connected to 127.0.0.1:7497#1")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "portmon dev\n", out)
}
