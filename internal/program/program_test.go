package program_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/engine"
	"github.com/roach88/achievemint/internal/ledger"
	"github.com/roach88/achievemint/internal/program"
	"github.com/roach88/achievemint/internal/testutil"
	"github.com/roach88/achievemint/internal/txn"
)

const startingLamports = 1_000_000_000

// testEnv is a program running on an in-memory ledger with fixed time.
type testEnv struct {
	t      *testing.T
	ctx    context.Context
	ledger *ledger.Memory
	engine *engine.Engine
	clock  *testutil.FixedTime
	nonces *testutil.SequentialGenerator
	cfg    program.Config

	admin, alice, bob, carol txn.Keypair
}

func newEnv(t *testing.T, cfg program.Config) *testEnv {
	t.Helper()
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = program.DefaultProgramID
	}
	env := &testEnv{
		t:      t,
		ctx:    context.Background(),
		ledger: ledger.NewMemory(),
		clock:  testutil.NewFixedTime(time.Time{}),
		nonces: testutil.NewSequentialGenerator("nonce"),
		cfg:    cfg,
		admin:  key(t, "admin"),
		alice:  key(t, "alice"),
		bob:    key(t, "bob"),
		carol:  key(t, "carol"),
	}
	env.engine = engine.New(env.ledger, []engine.Processor{program.New(cfg)},
		engine.WithTimeSource(env.clock),
		engine.WithTraceGenerator(testutil.NewSequentialGenerator("trace")),
		engine.WithNonceGenerator(testutil.NewSequentialGenerator("airdrop")),
		engine.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	for _, kp := range []txn.Keypair{env.admin, env.alice, env.bob} {
		_, err := env.engine.Airdrop(env.ctx, kp.Address(), startingLamports)
		require.NoError(t, err)
	}
	return env
}

func key(t *testing.T, name string) txn.Keypair {
	t.Helper()
	seed := sha256.Sum256([]byte(name))
	kp, err := txn.KeypairFromSeed(seed[:])
	require.NoError(t, err)
	return kp
}

func (e *testEnv) submit(ix txn.Instruction, signers ...txn.Keypair) (engine.Receipt, error) {
	e.t.Helper()
	tx := txn.New(ix, e.nonces.Generate())
	require.NoError(e.t, tx.Sign(signers...))
	return e.engine.Submit(e.ctx, tx)
}

func (e *testEnv) bootstrap(payer, admin txn.Keypair) error {
	e.t.Helper()
	ix, err := program.Bootstrap(e.cfg.ProgramID, payer.Address(), admin.Address())
	require.NoError(e.t, err)
	signers := []txn.Keypair{payer}
	if admin.Address() != payer.Address() {
		signers = append(signers, admin)
	}
	_, err = e.submit(ix, signers...)
	return err
}

func (e *testEnv) mint(payer txn.Keypair, owner address.Address, f program.MintFields) error {
	e.t.Helper()
	ix, err := program.Mint(e.cfg.ProgramID, payer.Address(), owner, f)
	require.NoError(e.t, err)
	_, err = e.submit(ix, payer)
	return err
}

func (e *testEnv) transfer(signer txn.Keypair, newOwner address.Address, ref program.BadgeRef) error {
	e.t.Helper()
	ix, err := program.Transfer(e.cfg.ProgramID, signer.Address(), newOwner, ref)
	require.NoError(e.t, err)
	_, err = e.submit(ix, signer)
	return err
}

func (e *testEnv) burn(signer txn.Keypair, ref program.BadgeRef) error {
	e.t.Helper()
	ix, err := program.Burn(e.cfg.ProgramID, signer.Address(), ref)
	require.NoError(e.t, err)
	_, err = e.submit(ix, signer)
	return err
}

func (e *testEnv) badge(ref program.BadgeRef) (program.BadgeRecord, bool) {
	e.t.Helper()
	d, err := program.DeriveBadge(e.cfg.ProgramID, ref)
	require.NoError(e.t, err)
	acct, err := e.ledger.Account(e.ctx, d.Address)
	if err != nil {
		require.ErrorIs(e.t, err, ledger.ErrAccountNotFound)
		return program.BadgeRecord{}, false
	}
	rec, err := program.DecodeBadge(acct.Data)
	require.NoError(e.t, err)
	return rec, true
}

func (e *testEnv) authority() program.AuthorityRecord {
	e.t.Helper()
	d, err := program.DeriveAuthority(e.cfg.ProgramID)
	require.NoError(e.t, err)
	acct, err := e.ledger.Account(e.ctx, d.Address)
	require.NoError(e.t, err)
	rec, err := program.DecodeAuthority(acct.Data)
	require.NoError(e.t, err)
	return rec
}

func (e *testEnv) balance(a address.Address) uint64 {
	e.t.Helper()
	bal, err := e.ledger.Balance(e.ctx, a)
	require.NoError(e.t, err)
	return bal
}

func validFields(id string) program.MintFields {
	return program.MintFields{
		Name:             "First Blood",
		Description:      "Defeat your first enemy",
		Rarity:           "common",
		UnlockPercentage: 42,
		AchievementID:    id,
	}
}

func ref(minter txn.Keypair, id string) program.BadgeRef {
	return program.BadgeRef{Minter: minter.Address(), AchievementID: id}
}

// Authority registry

func TestBootstrap_SecondFailsAndKeepsFirstAdministrator(t *testing.T) {
	env := newEnv(t, program.Config{})

	require.NoError(t, env.bootstrap(env.admin, env.admin))

	err := env.bootstrap(env.bob, env.bob)
	assert.ErrorIs(t, err, program.ErrAlreadyInitialized)
	assert.Equal(t, env.admin.Address(), env.authority().Administrator)
}

func TestBootstrap_SeparatePayer(t *testing.T) {
	env := newEnv(t, program.Config{})

	require.NoError(t, env.bootstrap(env.alice, env.admin))
	assert.Equal(t, env.admin.Address(), env.authority().Administrator)
	assert.Less(t, env.balance(env.alice.Address()), uint64(startingLamports), "payer covers storage")
	assert.Equal(t, uint64(startingLamports), env.balance(env.admin.Address()))
}

func TestBootstrap_RequiresBothSignatures(t *testing.T) {
	env := newEnv(t, program.Config{})

	ix, err := program.Bootstrap(env.cfg.ProgramID, env.alice.Address(), env.admin.Address())
	require.NoError(t, err)

	_, err = env.submit(ix, env.alice)
	assert.ErrorIs(t, err, program.ErrMissingSignature)

	_, err = env.submit(ix, env.admin)
	assert.ErrorIs(t, err, program.ErrMissingSignature)
}

func TestBootstrap_AddressMismatch(t *testing.T) {
	env := newEnv(t, program.Config{})

	ix, err := program.Bootstrap(env.cfg.ProgramID, env.admin.Address(), env.admin.Address())
	require.NoError(t, err)
	ix.Accounts[2].Address = env.carol.Address()

	_, err = env.submit(ix, env.admin)
	assert.ErrorIs(t, err, program.ErrAddressMismatch)
}

func TestBootstrap_InsufficientFunds(t *testing.T) {
	env := newEnv(t, program.Config{})

	err := env.bootstrap(env.carol, env.carol)
	assert.ErrorIs(t, err, program.ErrInsufficientFunds)
}

func TestBootstrap_PrefundedAuthorityAddress(t *testing.T) {
	env := newEnv(t, program.Config{})
	d, err := program.DeriveAuthority(env.cfg.ProgramID)
	require.NoError(t, err)
	_, err = env.engine.Airdrop(env.ctx, d.Address, 1)
	require.NoError(t, err)

	require.NoError(t, env.bootstrap(env.admin, env.admin))
	assert.Equal(t, env.admin.Address(), env.authority().Administrator)

	acct, err := env.ledger.Account(env.ctx, d.Address)
	require.NoError(t, err)
	assert.Equal(t, env.cfg.ProgramID, acct.Owner)
	assert.Equal(t, ledger.RentExemptMinimum(acct.Space), acct.Lamports, "existing lamports count toward rent")

	err = env.bootstrap(env.bob, env.bob)
	assert.ErrorIs(t, err, program.ErrAlreadyInitialized)
}

// Mint

func TestMint_RequiresAuthority(t *testing.T) {
	env := newEnv(t, program.Config{})

	err := env.mint(env.alice, env.alice.Address(), validFields("ach1"))
	assert.ErrorIs(t, err, program.ErrNotInitialized)
}

func TestMint_CreatesRecord(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	env.clock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("ach1")))

	rec, ok := env.badge(ref(env.alice, "ach1"))
	require.True(t, ok)
	assert.Equal(t, env.alice.Address(), rec.Owner)
	assert.Equal(t, env.alice.Address(), rec.Minter)
	assert.Equal(t, "First Blood", rec.Name)
	assert.Equal(t, "Defeat your first enemy", rec.Description)
	assert.Equal(t, "common", rec.Rarity)
	assert.Equal(t, uint8(42), rec.UnlockPercentage)
	assert.Equal(t, "ach1", rec.AchievementID)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Unix(), rec.MintTimestamp)

	d, err := program.DeriveBadge(env.cfg.ProgramID, ref(env.alice, "ach1"))
	require.NoError(t, err)
	assert.Equal(t, d.Bump, rec.Bump)
}

func TestMint_PayerMayDifferFromOwner(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	require.NoError(t, env.mint(env.admin, env.carol.Address(), validFields("gift")))

	rec, ok := env.badge(ref(env.carol, "gift"))
	require.True(t, ok)
	assert.Equal(t, env.carol.Address(), rec.Owner)

	_, ok = env.badge(ref(env.admin, "gift"))
	assert.False(t, ok, "badge is seeded with the owner, not the payer")
}

func TestMint_FieldBounds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *program.MintFields)
		wantErr error
	}{
		{"name at limit", func(f *program.MintFields) { f.Name = strings.Repeat("n", 32) }, nil},
		{"name too long", func(f *program.MintFields) { f.Name = strings.Repeat("n", 33) }, program.ErrNameTooLong},
		{"description at limit", func(f *program.MintFields) { f.Description = strings.Repeat("d", 200) }, nil},
		{"description too long", func(f *program.MintFields) { f.Description = strings.Repeat("d", 201) }, program.ErrDescriptionTooLong},
		{"rarity at limit", func(f *program.MintFields) { f.Rarity = strings.Repeat("r", 20) }, nil},
		{"rarity too long", func(f *program.MintFields) { f.Rarity = strings.Repeat("r", 21) }, program.ErrRarityTooLong},
		{"unlock zero", func(f *program.MintFields) { f.UnlockPercentage = 0 }, nil},
		{"unlock hundred", func(f *program.MintFields) { f.UnlockPercentage = 100 }, nil},
		{"unlock 101", func(f *program.MintFields) { f.UnlockPercentage = 101 }, program.ErrInvalidUnlockPercentage},
		{"unlock negative", func(f *program.MintFields) { f.UnlockPercentage = -1 }, program.ErrInvalidUnlockPercentage},
		{"achievement id at limit", func(f *program.MintFields) { f.AchievementID = strings.Repeat("a", 50) }, nil},
		{"achievement id too long", func(f *program.MintFields) { f.AchievementID = strings.Repeat("a", 51) }, program.ErrAchievementIDTooLong},
		{"multibyte name counted in bytes", func(f *program.MintFields) { f.Name = strings.Repeat("\u00e9", 17) }, program.ErrNameTooLong},
		{"decomposed name normalised before measuring", func(f *program.MintFields) { f.Name = strings.Repeat("e\u0301", 16) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, program.Config{})
			require.NoError(t, env.bootstrap(env.admin, env.admin))

			f := validFields("bounds")
			tt.mutate(&f)
			err := env.mint(env.alice, env.alice.Address(), f)

			if tt.wantErr == nil {
				require.NoError(t, err)
				_, ok := env.badge(ref(env.alice, f.AchievementID))
				assert.True(t, ok)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			_, ok := env.badge(ref(env.alice, f.AchievementID))
			assert.False(t, ok, "failed mint must not create a record")
			assert.Equal(t, uint64(startingLamports), env.balance(env.alice.Address()), "failed mint must not charge storage")
		})
	}
}

func TestMint_BoundsFailFirstInDeclarationOrder(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	f := validFields("x")
	f.Name = strings.Repeat("n", 33)
	f.UnlockPercentage = 101
	err := env.mint(env.alice, env.alice.Address(), f)
	assert.ErrorIs(t, err, program.ErrNameTooLong)
}

func TestMint_SignatureCheckedBeforeFields(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	f := validFields("x")
	f.Name = strings.Repeat("n", 33)
	ix, err := program.Mint(env.cfg.ProgramID, env.alice.Address(), env.alice.Address(), f)
	require.NoError(t, err)

	_, err = env.submit(ix, env.bob)
	assert.ErrorIs(t, err, program.ErrMissingSignature)
}

func TestMint_DuplicateRejected(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("ach1")))
	before, _ := env.badge(ref(env.alice, "ach1"))

	second := validFields("ach1")
	second.Name = "Other"
	err := env.mint(env.alice, env.alice.Address(), second)
	assert.ErrorIs(t, err, program.ErrRecordAlreadyExists)

	after, _ := env.badge(ref(env.alice, "ach1"))
	assert.Equal(t, before, after, "duplicate mint must not merge")
}

func TestMint_SameIDDifferentOwners(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("shared")))
	require.NoError(t, env.mint(env.bob, env.bob.Address(), validFields("shared")))

	a, _ := env.badge(ref(env.alice, "shared"))
	b, _ := env.badge(ref(env.bob, "shared"))
	assert.Equal(t, env.alice.Address(), a.Owner)
	assert.Equal(t, env.bob.Address(), b.Owner)
}

func TestMint_AddressMismatch(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	other, err := program.DeriveBadge(env.cfg.ProgramID, ref(env.alice, "other"))
	require.NoError(t, err)
	ix, err := program.Mint(env.cfg.ProgramID, env.alice.Address(), env.alice.Address(), validFields("ach1"))
	require.NoError(t, err)
	ix.Accounts[2].Address = other.Address

	_, err = env.submit(ix, env.alice)
	assert.ErrorIs(t, err, program.ErrAddressMismatch)
}

func TestMint_RestrictMint(t *testing.T) {
	env := newEnv(t, program.Config{RestrictMint: true})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	err := env.mint(env.alice, env.alice.Address(), validFields("ach1"))
	assert.ErrorIs(t, err, program.ErrUnauthorizedMinter)

	require.NoError(t, env.mint(env.admin, env.alice.Address(), validFields("ach1")))
	rec, ok := env.badge(ref(env.alice, "ach1"))
	require.True(t, ok)
	assert.Equal(t, env.alice.Address(), rec.Owner)
}

// Transfer and burn

func TestTransfer_NonOwnerRejected(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("ach1")))

	err := env.transfer(env.bob, env.bob.Address(), ref(env.alice, "ach1"))
	assert.ErrorIs(t, err, program.ErrNotOwner)

	rec, _ := env.badge(ref(env.alice, "ach1"))
	assert.Equal(t, env.alice.Address(), rec.Owner)
}

func TestTransfer_MissingSignature(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("ach1")))

	ix, err := program.Transfer(env.cfg.ProgramID, env.alice.Address(), env.bob.Address(), ref(env.alice, "ach1"))
	require.NoError(t, err)

	_, err = env.submit(ix, env.bob)
	assert.ErrorIs(t, err, program.ErrMissingSignature)
}

func TestTransfer_AddressMismatch(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("ach1")))
	require.NoError(t, env.mint(env.bob, env.bob.Address(), validFields("ach2")))

	// Name alice's badge but point at bob's account.
	bobs, err := program.DeriveBadge(env.cfg.ProgramID, ref(env.bob, "ach2"))
	require.NoError(t, err)
	ix, err := program.Transfer(env.cfg.ProgramID, env.alice.Address(), env.alice.Address(), ref(env.alice, "ach1"))
	require.NoError(t, err)
	ix.Accounts[2].Address = bobs.Address

	_, err = env.submit(ix, env.alice)
	assert.ErrorIs(t, err, program.ErrAddressMismatch)

	rec, _ := env.badge(ref(env.bob, "ach2"))
	assert.Equal(t, env.bob.Address(), rec.Owner)
}

func TestTransfer_PreviousOwnerLosesControl(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("ach1")))
	require.NoError(t, env.transfer(env.alice, env.bob.Address(), ref(env.alice, "ach1")))

	err := env.transfer(env.alice, env.alice.Address(), ref(env.alice, "ach1"))
	assert.ErrorIs(t, err, program.ErrNotOwner)

	err = env.burn(env.alice, ref(env.alice, "ach1"))
	assert.ErrorIs(t, err, program.ErrNotOwner)
}

func TestTransfer_LocatedByMinterNotOwner(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("ach1")))
	require.NoError(t, env.transfer(env.alice, env.bob.Address(), ref(env.alice, "ach1")))

	err := env.transfer(env.bob, env.carol.Address(), ref(env.bob, "ach1"))
	assert.ErrorIs(t, err, program.ErrRecordNotFound)

	require.NoError(t, env.transfer(env.bob, env.carol.Address(), ref(env.alice, "ach1")))
	rec, _ := env.badge(ref(env.alice, "ach1"))
	assert.Equal(t, env.carol.Address(), rec.Owner)
}

func TestRoundTrip_MintTransferBurn(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	badge := ref(env.alice, "x")

	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("x")))
	require.NoError(t, env.transfer(env.alice, env.bob.Address(), badge))

	d, err := program.DeriveBadge(env.cfg.ProgramID, badge)
	require.NoError(t, err)
	rent := env.balance(d.Address)
	bobBefore := env.balance(env.bob.Address())

	require.NoError(t, env.burn(env.bob, badge))

	_, ok := env.badge(badge)
	assert.False(t, ok, "burn leaves no record")
	assert.Equal(t, bobBefore+rent, env.balance(env.bob.Address()), "storage cost refunded to the burning owner")

	err = env.burn(env.bob, badge)
	assert.ErrorIs(t, err, program.ErrRecordNotFound)
}

func TestBurn_AddressReusableAfterBurn(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	badge := ref(env.alice, "again")

	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("again")))
	require.NoError(t, env.burn(env.alice, badge))

	env.clock.Advance(time.Hour)
	fresh := validFields("again")
	fresh.Rarity = "legendary"
	require.NoError(t, env.mint(env.alice, env.alice.Address(), fresh))

	rec, ok := env.badge(badge)
	require.True(t, ok)
	assert.Equal(t, "legendary", rec.Rarity)
	assert.Equal(t, testutil.DefaultEpoch.Add(time.Hour).Unix(), rec.MintTimestamp)
}

func TestTransfer_ImmutableFieldsUnchanged(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))

	f := validFields("scenario")
	f.UnlockPercentage = 50
	f.Rarity = "rare"
	require.NoError(t, env.mint(env.alice, env.alice.Address(), f))
	before, _ := env.badge(ref(env.alice, "scenario"))

	d, err := program.DeriveBadge(env.cfg.ProgramID, ref(env.alice, "scenario"))
	require.NoError(t, err)
	acctBefore, err := env.ledger.Account(env.ctx, d.Address)
	require.NoError(t, err)

	env.clock.Advance(24 * time.Hour)
	require.NoError(t, env.transfer(env.alice, env.bob.Address(), ref(env.alice, "scenario")))
	after, _ := env.badge(ref(env.alice, "scenario"))

	assert.Equal(t, env.bob.Address(), after.Owner)
	after.Owner = before.Owner
	assert.Equal(t, before, after, "only owner may differ after transfer")

	acctAfter, err := env.ledger.Account(env.ctx, d.Address)
	require.NoError(t, err)
	assert.Equal(t, acctBefore.Lamports, acctAfter.Lamports)
	assert.Equal(t, len(acctBefore.Data), len(acctAfter.Data))
}

// Validator against forged state

// forge writes an account directly, bypassing the program.
func (e *testEnv) forge(addr, owner address.Address, data []byte) {
	e.t.Helper()
	funder := key(e.t, "forger").Address()
	require.NoError(e.t, e.ledger.RunInTx(e.ctx, func(tx ledger.Tx) error {
		if err := tx.Credit(funder, startingLamports); err != nil {
			return err
		}
		_, err := tx.CreateAccount(addr, owner, funder, data)
		return err
	}))
}

func TestValidator_ForgedRecords(t *testing.T) {
	tests := []struct {
		name    string
		forge   func(env *testEnv, d address.Derivation)
		wantErr error
	}{
		{
			name: "wrong program",
			forge: func(env *testEnv, d address.Derivation) {
				data, err := program.BadgeRecord{Owner: env.bob.Address(), Minter: env.alice.Address(), AchievementID: "ach1", Bump: d.Bump}.Encode()
				require.NoError(env.t, err)
				env.forge(d.Address, env.carol.Address(), data)
			},
			wantErr: program.ErrWrongProgram,
		},
		{
			name: "wrong tag",
			forge: func(env *testEnv, d address.Derivation) {
				data, err := program.AuthorityRecord{Administrator: env.bob.Address(), Bump: d.Bump}.Encode()
				require.NoError(env.t, err)
				env.forge(d.Address, env.cfg.ProgramID, data)
			},
			wantErr: program.ErrInvalidRecordTag,
		},
		{
			name: "spoofed bump",
			forge: func(env *testEnv, d address.Derivation) {
				data, err := program.BadgeRecord{Owner: env.bob.Address(), Minter: env.alice.Address(), AchievementID: "ach1", Bump: d.Bump - 1}.Encode()
				require.NoError(env.t, err)
				env.forge(d.Address, env.cfg.ProgramID, data)
			},
			wantErr: program.ErrProofMismatch,
		},
		{
			name: "spoofed seeds",
			forge: func(env *testEnv, d address.Derivation) {
				data, err := program.BadgeRecord{Owner: env.bob.Address(), Minter: env.bob.Address(), AchievementID: "ach1", Bump: d.Bump}.Encode()
				require.NoError(env.t, err)
				env.forge(d.Address, env.cfg.ProgramID, data)
			},
			wantErr: program.ErrProofMismatch,
		},
		{
			name: "garbage body",
			forge: func(env *testEnv, d address.Derivation) {
				good, err := program.BadgeRecord{}.Encode()
				require.NoError(env.t, err)
				env.forge(d.Address, env.cfg.ProgramID, append(good[:program.TagSize:program.TagSize], []byte("not json")...))
			},
			wantErr: program.ErrInvalidRecordData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, program.Config{})
			require.NoError(t, env.bootstrap(env.admin, env.admin))
			d, err := program.DeriveBadge(env.cfg.ProgramID, ref(env.alice, "ach1"))
			require.NoError(t, err)
			tt.forge(env, d)

			err = env.transfer(env.bob, env.carol.Address(), ref(env.alice, "ach1"))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMint_ForgedAuthorityRejected(t *testing.T) {
	env := newEnv(t, program.Config{})
	d, err := program.DeriveAuthority(env.cfg.ProgramID)
	require.NoError(t, err)
	data, err := program.AuthorityRecord{Administrator: env.bob.Address(), Bump: d.Bump}.Encode()
	require.NoError(t, err)
	env.forge(d.Address, env.carol.Address(), data)

	err = env.mint(env.alice, env.alice.Address(), validFields("ach1"))
	assert.ErrorIs(t, err, program.ErrWrongProgram)
}

// Dispatch and determinism

func TestProcess_InvalidInstructions(t *testing.T) {
	env := newEnv(t, program.Config{})

	_, err := env.submit(txn.Instruction{ProgramID: env.cfg.ProgramID, Name: "airdrop-me"}, env.alice)
	assert.ErrorIs(t, err, program.ErrInvalidInstruction)

	ix, err := program.Burn(env.cfg.ProgramID, env.alice.Address(), ref(env.alice, "x"))
	require.NoError(t, err)
	ix.Accounts = ix.Accounts[:1]
	_, err = env.submit(ix, env.alice)
	assert.ErrorIs(t, err, program.ErrInvalidInstruction)

	ix, err = program.Burn(env.cfg.ProgramID, env.alice.Address(), ref(env.alice, "x"))
	require.NoError(t, err)
	delete(ix.Args, "minter")
	_, err = env.submit(ix, env.alice)
	assert.ErrorIs(t, err, program.ErrInvalidInstruction)
}

func TestReplay_ReproducesLifecycle(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("a")))
	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("b")))
	require.Error(t, env.transfer(env.bob, env.bob.Address(), ref(env.alice, "a")))
	env.clock.Advance(time.Minute)
	require.NoError(t, env.transfer(env.alice, env.bob.Address(), ref(env.alice, "a")))
	require.NoError(t, env.burn(env.alice, ref(env.alice, "b")))

	report, err := env.engine.Replay(env.ctx, ledger.NewMemory())
	require.NoError(t, err)
	assert.True(t, report.Deterministic(), "divergences: %v", report.Divergences)
}

// Funded system accounts at derived addresses

func TestMint_PrefundedBadgeAddress(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	d, err := program.DeriveBadge(env.cfg.ProgramID, ref(env.alice, "ach1"))
	require.NoError(t, err)
	_, err = env.engine.Airdrop(env.ctx, d.Address, 1)
	require.NoError(t, err)

	require.NoError(t, env.mint(env.alice, env.alice.Address(), validFields("ach1")))
	rec, ok := env.badge(ref(env.alice, "ach1"))
	require.True(t, ok)
	assert.Equal(t, env.alice.Address(), rec.Owner)

	err = env.mint(env.alice, env.alice.Address(), validFields("ach1"))
	assert.ErrorIs(t, err, program.ErrRecordAlreadyExists)
}

func TestTransferAndBurn_SystemAccountAtBadgeAddress(t *testing.T) {
	env := newEnv(t, program.Config{})
	require.NoError(t, env.bootstrap(env.admin, env.admin))
	d, err := program.DeriveBadge(env.cfg.ProgramID, ref(env.alice, "ach1"))
	require.NoError(t, err)
	_, err = env.engine.Airdrop(env.ctx, d.Address, 500)
	require.NoError(t, err)

	err = env.transfer(env.alice, env.bob.Address(), ref(env.alice, "ach1"))
	assert.ErrorIs(t, err, program.ErrWrongProgram)

	err = env.burn(env.alice, ref(env.alice, "ach1"))
	assert.ErrorIs(t, err, program.ErrWrongProgram)
	assert.Equal(t, uint64(500), env.balance(d.Address), "lamports stay where they were sent")
}

func TestBadgeSeeds_FixedWidthPrefix(t *testing.T) {
	// Only the last seed varies in length, so distinct refs never
	// concatenate to the same bytes.
	a := program.BadgeSeeds(program.BadgeRef{Minter: key(t, "alice").Address(), AchievementID: "ab"})
	b := program.BadgeSeeds(program.BadgeRef{Minter: key(t, "bob").Address(), AchievementID: "ab"})
	for _, seeds := range [][][]byte{a, b} {
		require.Len(t, seeds, 3)
		assert.Equal(t, []byte(program.BadgeSeed), seeds[0])
		assert.Len(t, seeds[1], address.Size)
	}

	da, err := program.DeriveBadge(program.DefaultProgramID, program.BadgeRef{Minter: key(t, "alice").Address(), AchievementID: "ab"})
	require.NoError(t, err)
	db, err := program.DeriveBadge(program.DefaultProgramID, program.BadgeRef{Minter: key(t, "alice").Address(), AchievementID: "abc"})
	require.NoError(t, err)
	assert.NotEqual(t, da.Address, db.Address)
}

func TestMintFields_ValidateCountsBytes(t *testing.T) {
	// 16 characters, 32 bytes.
	atLimit := program.MintFields{Name: strings.Repeat("\u00e9", 16)}.Normalized()
	assert.NoError(t, atLimit.Validate())

	// 20 characters, 40 bytes.
	over := program.MintFields{Name: strings.Repeat("\u00e9", 20)}.Normalized()
	assert.ErrorIs(t, over.Validate(), program.ErrNameTooLong)
}
