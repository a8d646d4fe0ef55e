package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/codec"
	"github.com/roach88/achievemint/internal/ledger"
	"github.com/roach88/achievemint/internal/txn"
)

// errNoProgram is returned when a journaled transaction names a program this
// engine does not know.
var errNoProgram = errors.New("program not registered")

// Divergence is a journal entry whose replayed outcome differs from the
// recorded one.
type Divergence struct {
	Seq        int64
	TxID       string
	WantStatus string
	WantCode   string
	GotStatus  string
	GotCode    string
}

// ReplayReport summarises a replay.
type ReplayReport struct {
	Entries      int
	Divergences  []Divergence
	LiveDigest   string
	ReplayDigest string
}

// Deterministic reports whether replay reproduced the live ledger exactly.
func (r ReplayReport) Deterministic() bool {
	return len(r.Divergences) == 0 && r.LiveDigest == r.ReplayDigest
}

// Replay re-executes this engine's journal against target, which should be
// empty. Each entry runs with its journaled slot, time and trace ID, so the
// replayed ledger must match the live one byte for byte.
func (e *Engine) Replay(ctx context.Context, target ledger.Ledger) (ReplayReport, error) {
	entries, err := e.ledger.Journal(ctx)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	programs := make([]Processor, 0, len(e.programs))
	for _, p := range e.programs {
		programs = append(programs, p)
	}
	replayer := New(target, programs, WithLogger(e.logger.With("replay", true)))

	report := ReplayReport{Entries: len(entries)}
	for _, entry := range entries {
		got, err := replayer.replayEntry(ctx, entry)
		if err != nil {
			return report, fmt.Errorf("replay seq %d: %w", entry.Seq, err)
		}
		if got.Status != entry.Status || got.Code != entry.Code {
			report.Divergences = append(report.Divergences, Divergence{
				Seq:        entry.Seq,
				TxID:       entry.TxID,
				WantStatus: entry.Status,
				WantCode:   entry.Code,
				GotStatus:  got.Status,
				GotCode:    got.Code,
			})
		}
	}

	live, err := e.ledger.Accounts(ctx)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	replayed, err := target.Accounts(ctx)
	if err != nil {
		return report, fmt.Errorf("replay: %w", err)
	}
	report.LiveDigest = ledger.Digest(live)
	report.ReplayDigest = ledger.Digest(replayed)
	return report, nil
}

func (e *Engine) replayEntry(ctx context.Context, entry ledger.Entry) (Receipt, error) {
	// Program failures are expected outcomes here; only ledger errors abort.
	switch entry.Kind {
	case ledger.KindAirdrop:
		to, lamports, err := decodeAirdrop(entry.Payload)
		if err != nil {
			return Receipt{}, err
		}
		return e.applyAirdrop(ctx, to, lamports, entry)

	case ledger.KindTransaction:
		tx, err := txn.Decode(entry.Payload)
		if err != nil {
			return Receipt{}, err
		}
		proc, ok := e.programs[tx.Instruction.ProgramID]
		if !ok {
			return Receipt{}, fmt.Errorf("%w: %s", errNoProgram, tx.Instruction.ProgramID)
		}
		signers, err := tx.Verify()
		if err != nil {
			return Receipt{}, err
		}
		replay := entry
		replay.Status, replay.Code = "", ""
		receipt, err := e.execute(ctx, proc, tx.Instruction, signers, replay)
		if receipt.Status != "" {
			return receipt, nil
		}
		return receipt, err

	default:
		return Receipt{}, fmt.Errorf("unknown journal kind %q", entry.Kind)
	}
}

func decodeAirdrop(payload []byte) (address.Address, uint64, error) {
	v, err := codec.Unmarshal(payload)
	if err != nil {
		return address.Address{}, 0, fmt.Errorf("decode airdrop: %w", err)
	}
	obj, ok := v.(codec.Object)
	if !ok {
		return address.Address{}, 0, fmt.Errorf("decode airdrop: expected object")
	}
	toText, err := obj.String("to")
	if err != nil {
		return address.Address{}, 0, fmt.Errorf("decode airdrop: %w", err)
	}
	to, err := address.Parse(toText)
	if err != nil {
		return address.Address{}, 0, fmt.Errorf("decode airdrop: %w", err)
	}
	lamports, err := obj.Int("lamports")
	if err != nil || lamports <= 0 {
		return address.Address{}, 0, fmt.Errorf("decode airdrop: bad lamports")
	}
	return to, uint64(lamports), nil
}
