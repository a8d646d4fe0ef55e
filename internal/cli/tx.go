package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/engine"
	"github.com/roach88/achievemint/internal/program"
)

// ReceiptView is the outcome of a submission.
type ReceiptView struct {
	TxID        string `json:"tx_id"`
	Instruction string `json:"instruction"`
	Seq         int64  `json:"seq"`
	Slot        uint64 `json:"slot"`
	Status      string `json:"status"`
	Code        string `json:"code,omitempty"`
	Badge       string `json:"badge,omitempty"`
}

func (v ReceiptView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (seq %d, slot %d)", v.Instruction, v.Status, v.Seq, v.Slot)
	if v.Code != "" {
		fmt.Fprintf(&b, " [%s]", v.Code)
	}
	fmt.Fprintf(&b, "\ntx:    %s", v.TxID)
	if v.Badge != "" {
		fmt.Fprintf(&b, "\nbadge: %s", v.Badge)
	}
	return b.String()
}

func receiptView(r engine.Receipt) ReceiptView {
	return ReceiptView{
		TxID:        r.TxID,
		Instruction: r.Instruction,
		Seq:         r.Seq,
		Slot:        r.Slot,
		Status:      r.Status,
		Code:        r.Code,
	}
}

// report writes the outcome of a submission. Failed and rejected
// submissions exit with ExitFailure; ledger errors are command errors.
func report(f *OutputFormatter, what string, receipt engine.Receipt, view ReceiptView, err error) error {
	if err != nil {
		var details any
		if receipt.TxID != "" {
			details = view
		}
		return f.Fail(ErrCodeDatabase, what+" failed", err, details)
	}
	return f.SuccessWithTrace(view, receipt.TraceID)
}

// NewAirdropCommand creates the airdrop command.
func NewAirdropCommand(opts *RootOptions) *cobra.Command {
	var to string
	var lamports uint64

	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Credit lamports to an address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			dest, err := parseAddress("to", to, address.Zero)
			if err != nil {
				return f.Fail(ErrCodeInput, "invalid address", err, nil)
			}
			if lamports == 0 {
				return f.Fail(ErrCodeInput, "invalid arguments", fmt.Errorf("--lamports must be positive"), nil)
			}

			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			receipt, err := s.client.Airdrop(cmd.Context(), dest, lamports)
			return report(f, "airdrop", receipt, receiptView(receipt), err)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient address (required)")
	cmd.Flags().Uint64Var(&lamports, "lamports", 0, "amount to credit (required)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("lamports")
	return cmd
}

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	var keypair, payer string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the authority record",
		Long: `Create the program's authority record with the signing keypair as
administrator. The record can be created once per program.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			admin, err := opts.keypair(keypair)
			if err != nil {
				return f.Fail(ErrCodeKeypair, "failed to load keypair", err, nil)
			}
			payerKey := admin
			if payer != "" {
				if payerKey, err = opts.keypair(payer); err != nil {
					return f.Fail(ErrCodeKeypair, "failed to load payer keypair", err, nil)
				}
			}

			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			receipt, err := s.client.Bootstrap(cmd.Context(), payerKey, admin)
			return report(f, "init", receipt, receiptView(receipt), err)
		},
	}

	cmd.Flags().StringVarP(&keypair, "keypair", "k", "", "administrator keypair (default: wallet.keypair)")
	cmd.Flags().StringVar(&payer, "payer", "", "keypair that funds the record (default: administrator)")
	return cmd
}

// NewMintCommand creates the mint command.
func NewMintCommand(opts *RootOptions) *cobra.Command {
	var keypair, owner string
	var fields program.MintFields

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a badge",
		Long: `Mint a badge paid for by the signing keypair. The badge address is
derived from the signer and the achievement ID, so each signer can mint a
given achievement once.

Text fields are normalised to NFC and measured in bytes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			payer, err := opts.keypair(keypair)
			if err != nil {
				return f.Fail(ErrCodeKeypair, "failed to load keypair", err, nil)
			}
			ownerAddr, err := parseAddress("owner", owner, payer.Address())
			if err != nil {
				return f.Fail(ErrCodeInput, "invalid address", err, nil)
			}

			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			ref, receipt, err := s.client.Mint(cmd.Context(), payer, ownerAddr, fields)
			view := receiptView(receipt)
			if err == nil {
				if d, derr := program.DeriveBadge(s.client.ProgramID(), ref); derr == nil {
					view.Badge = d.Address.String()
				}
			}
			return report(f, "mint", receipt, view, err)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&keypair, "keypair", "k", "", "payer keypair (default: wallet.keypair)")
	flags.StringVar(&owner, "owner", "", "badge owner address (default: payer)")
	flags.StringVar(&fields.Name, "name", "", "badge name")
	flags.StringVar(&fields.Description, "description", "", "badge description")
	flags.StringVar(&fields.Rarity, "rarity", "", "badge rarity")
	flags.Int64Var(&fields.UnlockPercentage, "unlock-percentage", 0, "share of players holding the badge (0-100)")
	flags.StringVar(&fields.AchievementID, "achievement-id", "", "achievement ID (required)")
	_ = cmd.MarkFlagRequired("achievement-id")
	return cmd
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(opts *RootOptions) *cobra.Command {
	var keypair, to, minter, achievementID string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer a badge to a new owner",
		Long: `Transfer a badge owned by the signing keypair. The badge is located by
its original minter, which defaults to the signer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			owner, err := opts.keypair(keypair)
			if err != nil {
				return f.Fail(ErrCodeKeypair, "failed to load keypair", err, nil)
			}
			newOwner, err := parseAddress("to", to, address.Zero)
			if err != nil {
				return f.Fail(ErrCodeInput, "invalid address", err, nil)
			}
			minterAddr, err := parseAddress("minter", minter, owner.Address())
			if err != nil {
				return f.Fail(ErrCodeInput, "invalid address", err, nil)
			}

			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			ref := program.BadgeRef{Minter: minterAddr, AchievementID: achievementID}
			receipt, err := s.client.Transfer(cmd.Context(), owner, newOwner, ref)
			return report(f, "transfer", receipt, receiptView(receipt), err)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&keypair, "keypair", "k", "", "current owner keypair (default: wallet.keypair)")
	flags.StringVar(&to, "to", "", "new owner address (required)")
	flags.StringVar(&minter, "minter", "", "original minter address (default: signer)")
	flags.StringVar(&achievementID, "achievement-id", "", "achievement ID (required)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("achievement-id")
	return cmd
}

// NewBurnCommand creates the burn command.
func NewBurnCommand(opts *RootOptions) *cobra.Command {
	var keypair, minter, achievementID string

	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Burn a badge and refund its rent to the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			owner, err := opts.keypair(keypair)
			if err != nil {
				return f.Fail(ErrCodeKeypair, "failed to load keypair", err, nil)
			}
			minterAddr, err := parseAddress("minter", minter, owner.Address())
			if err != nil {
				return f.Fail(ErrCodeInput, "invalid address", err, nil)
			}

			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			ref := program.BadgeRef{Minter: minterAddr, AchievementID: achievementID}
			receipt, err := s.client.Burn(cmd.Context(), owner, ref)
			return report(f, "burn", receipt, receiptView(receipt), err)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&keypair, "keypair", "k", "", "owner keypair (default: wallet.keypair)")
	flags.StringVar(&minter, "minter", "", "original minter address (default: signer)")
	flags.StringVar(&achievementID, "achievement-id", "", "achievement ID (required)")
	_ = cmd.MarkFlagRequired("achievement-id")
	return cmd
}
