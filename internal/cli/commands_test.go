package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/achievemint/internal/config"
)

// cliEnv runs commands against a ledger in a temporary directory with no
// user or project config and an empty environment.
type cliEnv struct {
	dir string
	db  string
	env map[string]string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	return &cliEnv{dir: dir, db: filepath.Join(dir, "ledger.db"), env: map[string]string{}}
}

func (e *cliEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

// exec runs args with --db and --format json prepended.
func (e *cliEnv) exec(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(
		config.WithDirs(e.dir, e.dir),
		config.WithEnv(func(k string) string { return e.env[k] }),
	)
	var out, diag bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&diag)
	cmd.SetArgs(append([]string{"--db", e.db, "--format", "json"}, args...))
	err := cmd.Execute()
	return out.String(), diag.String(), err
}

type response[T any] struct {
	Status  string    `json:"status"`
	Data    T         `json:"data"`
	Error   *CLIError `json:"error"`
	TraceID string    `json:"trace_id"`
}

func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

// ok runs args, requires success and decodes the payload.
func ok[T any](t *testing.T, e *cliEnv, args ...string) response[T] {
	t.Helper()
	out, _, err := e.exec(t, args...)
	require.NoError(t, err, "achievemint %s: %s", strings.Join(args, " "), out)
	resp := decode[T](t, out)
	require.Equal(t, "ok", resp.Status)
	return resp
}

// fails runs args, requires exit code want and returns the reported error.
func fails(t *testing.T, e *cliEnv, want int, args ...string) *CLIError {
	t.Helper()
	out, _, err := e.exec(t, args...)
	require.Error(t, err, "achievemint %s should fail", strings.Join(args, " "))
	assert.Equal(t, want, GetExitCode(err))
	resp := decode[json.RawMessage](t, out)
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestCommands_BadgeLifecycle(t *testing.T) {
	e := newCLIEnv(t)
	adminFile, bobFile := e.path("admin.json"), e.path("bob.json")

	admin := ok[KeyView](t, e, "keygen", "--out", adminFile).Data.Address
	bob := ok[KeyView](t, e, "keygen", "--out", bobFile).Data.Address
	assert.NotEqual(t, admin, bob)
	assert.Equal(t, admin, ok[KeyView](t, e, "pubkey", "--keypair", adminFile).Data.Address)

	ok[ReceiptView](t, e, "airdrop", "--to", admin, "--lamports", "1000000000")

	boot := ok[ReceiptView](t, e, "init", "--keypair", adminFile)
	assert.Equal(t, "bootstrap", boot.Data.Instruction)
	assert.NotEmpty(t, boot.TraceID)
	assert.Equal(t, "ALREADY_INITIALIZED", fails(t, e, ExitFailure, "init", "--keypair", adminFile).Code)

	auth := ok[AuthorityView](t, e, "show", "authority")
	assert.Equal(t, admin, auth.Data.Administrator)

	mint := ok[ReceiptView](t, e, "mint", "--keypair", adminFile,
		"--name", "First Blood", "--description", "Win your first match",
		"--rarity", "common", "--unlock-percentage", "42", "--achievement-id", "first-blood")
	assert.Equal(t, "ok", mint.Data.Status)
	require.NotEmpty(t, mint.Data.Badge)

	derived := ok[DeriveView](t, e, "derive", "--minter", admin, "--achievement-id", "first-blood")
	require.NotNil(t, derived.Data.Badge)
	assert.Equal(t, mint.Data.Badge, derived.Data.Badge.Address)
	assert.Equal(t, auth.Data.Address, derived.Data.Authority.Address)

	badge := ok[BadgeView](t, e, "show", "badge", "--minter", admin, "--achievement-id", "first-blood")
	assert.Equal(t, admin, badge.Data.Owner)
	assert.Equal(t, admin, badge.Data.Minter)
	assert.Equal(t, "First Blood", badge.Data.Name)
	assert.Equal(t, uint8(42), badge.Data.UnlockPercentage)

	assert.Equal(t, "NOT_OWNER", fails(t, e, ExitFailure,
		"transfer", "--keypair", bobFile, "--to", bob, "--minter", admin, "--achievement-id", "first-blood").Code)

	ok[ReceiptView](t, e, "transfer", "--keypair", adminFile, "--to", bob, "--achievement-id", "first-blood")
	badge = ok[BadgeView](t, e, "show", "badge", "--minter", admin, "--achievement-id", "first-blood")
	assert.Equal(t, bob, badge.Data.Owner)
	assert.Equal(t, admin, badge.Data.Minter)

	ok[ReceiptView](t, e, "burn", "--keypair", bobFile, "--minter", admin, "--achievement-id", "first-blood")
	assert.Equal(t, ErrCodeInput, fails(t, e, ExitCommandError,
		"show", "badge", "--minter", admin, "--achievement-id", "first-blood").Code)

	bal := ok[BalanceView](t, e, "balance", bob)
	assert.Positive(t, bal.Data.Lamports, "burn refunds rent to the owner")

	journal := ok[JournalView](t, e, "log")
	require.Len(t, journal.Data.Entries, 7)
	statuses := make([]string, 0, len(journal.Data.Entries))
	for i, entry := range journal.Data.Entries {
		assert.Equal(t, int64(i+1), entry.Seq)
		statuses = append(statuses, entry.Status+":"+entry.Code)
	}
	assert.Equal(t, []string{
		"ok:", "ok:", "failed:ALREADY_INITIALIZED", "ok:", "failed:NOT_OWNER", "ok:", "ok:",
	}, statuses)
	assert.Len(t, ok[JournalView](t, e, "log", "--limit", "2").Data.Entries, 2)

	replay := ok[ReplayView](t, e, "replay")
	assert.True(t, replay.Data.Deterministic)
	assert.Equal(t, 7, replay.Data.Entries)
	assert.Equal(t, replay.Data.LiveDigest, replay.Data.ReplayDigest)
}

func TestCommands_MintRejectsLongAchievementID(t *testing.T) {
	e := newCLIEnv(t)
	adminFile := e.path("admin.json")
	admin := ok[KeyView](t, e, "keygen", "--out", adminFile).Data.Address
	ok[ReceiptView](t, e, "airdrop", "--to", admin, "--lamports", "1000000000")
	ok[ReceiptView](t, e, "init", "--keypair", adminFile)

	cliErr := fails(t, e, ExitFailure, "mint", "--keypair", adminFile,
		"--achievement-id", strings.Repeat("x", 70))
	assert.Equal(t, "ACHIEVEMENT_ID_TOO_LONG", cliErr.Code)
}

func TestCommands_KeygenKeepsExistingFile(t *testing.T) {
	e := newCLIEnv(t)
	file := e.path("admin.json")

	first := ok[KeyView](t, e, "keygen", "--out", file).Data.Address
	assert.Equal(t, ErrCodeKeypair, fails(t, e, ExitCommandError, "keygen", "--out", file).Code)
	assert.Equal(t, first, ok[KeyView](t, e, "pubkey", "--keypair", file).Data.Address)

	second := ok[KeyView](t, e, "keygen", "--out", file, "--force").Data.Address
	assert.NotEqual(t, first, second)
}

func TestCommands_KeypairFromEnvironment(t *testing.T) {
	e := newCLIEnv(t)
	file := e.path("admin.json")
	admin := ok[KeyView](t, e, "keygen", "--out", file).Data.Address

	assert.Equal(t, ErrCodeKeypair, fails(t, e, ExitCommandError, "pubkey").Code)

	e.env[config.EnvPrefix+"KEYPAIR"] = file
	assert.Equal(t, admin, ok[KeyView](t, e, "pubkey").Data.Address)
}

func TestCommands_ProjectConfig(t *testing.T) {
	e := newCLIEnv(t)
	file := e.path("admin.json")
	admin := ok[KeyView](t, e, "keygen", "--out", file).Data.Address

	cfg := "wallet:\n  keypair: " + file + "\nprogram:\n  restrict_mint: true\n"
	require.NoError(t, os.WriteFile(e.path(config.ProjectConfigFile), []byte(cfg), 0o644))

	assert.Equal(t, admin, ok[KeyView](t, e, "pubkey").Data.Address)
}

func TestCommands_InvalidInput(t *testing.T) {
	e := newCLIEnv(t)

	assert.Equal(t, ErrCodeInput, fails(t, e, ExitCommandError, "balance", "not-an-address").Code)
	assert.Equal(t, ErrCodeInput, fails(t, e, ExitCommandError, "derive", "--minter", "11111111111111111111111111111111").Code)
	assert.Equal(t, ErrCodeInput, fails(t, e, ExitCommandError, "show", "authority").Code)
}

func TestCommands_InvalidFormat(t *testing.T) {
	cmd := newRootCommand(config.WithDirs(t.TempDir(), t.TempDir()), config.WithEnv(func(string) string { return "" }))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "yaml", "derive"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCommands_DeriveText(t *testing.T) {
	cmd := newRootCommand(config.WithDirs(t.TempDir(), t.TempDir()), config.WithEnv(func(string) string { return "" }))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"derive"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "program:   5SMBZMjXcW3r8tX25cMANwsSq5nFCBYAuFr8xNagDnA1")
	assert.Contains(t, out.String(), "authority: ")
	assert.NotContains(t, out.String(), "badge:")
}

func TestCommands_RunScenarios(t *testing.T) {
	e := newCLIEnv(t)
	scenario := filepath.Join("..", "harness", "testdata", "scenarios", "lifecycle.yaml")

	out, diag, err := e.exec(t, "--metrics", "run", scenario)
	require.NoError(t, err, out)
	resp := decode[RunView](t, out)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 0, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "lifecycle", resp.Data.Scenarios[0].Name)
	assert.Len(t, resp.Data.Scenarios[0].Trace, 6)
	assert.Contains(t, diag, "achievemint_submissions_total")
}

func TestCommands_RunFailingScenario(t *testing.T) {
	e := newCLIEnv(t)
	file := e.path("mismatch.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
name: mismatch
description: "bootstrap twice without expecting the failure"
wallets: [admin]
airdrop: {admin: 1000000000}
steps:
  - op: bootstrap
    signer: admin
  - op: bootstrap
    signer: admin
`), 0o644))

	out, _, err := e.exec(t, "run", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.False(t, IsReported(err))

	resp := decode[RunView](t, out)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios[0].Errors, 1)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "expected OK, got ALREADY_INITIALIZED")
}

func TestCommands_RunInvalidScenario(t *testing.T) {
	e := newCLIEnv(t)
	file := e.path("broken.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: Broken\n"), 0o644))

	assert.Equal(t, ErrCodeInput, fails(t, e, ExitCommandError, "run", file).Code)
}
