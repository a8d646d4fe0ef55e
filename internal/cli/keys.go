package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/program"
	"github.com/roach88/achievemint/internal/txn"
	"github.com/roach88/achievemint/internal/wallet"
)

// KeyView describes a keypair file.
type KeyView struct {
	Address string `json:"address"`
	Path    string `json:"path,omitempty"`
}

func (v KeyView) String() string {
	if v.Path == "" {
		return v.Address
	}
	return fmt.Sprintf("%s (%s)", v.Address, v.Path)
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(opts *RootOptions) *cobra.Command {
	var out string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair file",
		Long: `Generate an ed25519 keypair and write it as a JSON array of 64 bytes.

The file is created with 0600 permissions. An existing file is kept unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			kp, err := txn.GenerateKeypair(nil)
			if err != nil {
				return f.Fail(ErrCodeKeypair, "failed to generate keypair", err, nil)
			}
			if err := wallet.Save(out, kp, force); err != nil {
				return f.Fail(ErrCodeKeypair, "failed to write keypair", err, nil)
			}
			return f.Success(KeyView{Address: kp.Address().String(), Path: out})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "keypair file to write (required)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// NewPubkeyCommand creates the pubkey command.
func NewPubkeyCommand(opts *RootOptions) *cobra.Command {
	var keypair string

	cmd := &cobra.Command{
		Use:   "pubkey",
		Short: "Print the address of a keypair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			kp, err := opts.keypair(keypair)
			if err != nil {
				return f.Fail(ErrCodeKeypair, "failed to load keypair", err, nil)
			}
			return f.Success(KeyView{Address: kp.Address().String()})
		},
	}

	cmd.Flags().StringVarP(&keypair, "keypair", "k", "", "keypair file (default: wallet.keypair)")
	return cmd
}

// DerivationView is a derived address and its bump.
type DerivationView struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

// DeriveView lists the addresses derived for a program.
type DeriveView struct {
	ProgramID string          `json:"program_id"`
	Authority DerivationView  `json:"authority"`
	Badge     *DerivationView `json:"badge,omitempty"`
}

func (v DeriveView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "program:   %s\n", v.ProgramID)
	fmt.Fprintf(&b, "authority: %s (bump %d)", v.Authority.Address, v.Authority.Bump)
	if v.Badge != nil {
		fmt.Fprintf(&b, "\nbadge:     %s (bump %d)", v.Badge.Address, v.Badge.Bump)
	}
	return b.String()
}

func derivationView(d address.Derivation) DerivationView {
	return DerivationView{Address: d.Address.String(), Bump: d.Bump}
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(opts *RootOptions) *cobra.Command {
	var minter, achievementID string

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive record addresses without touching the ledger",
		Long: `Derive the authority address for the configured program. With --minter
and --achievement-id, also derive the badge address.

Achievement IDs are normalised to NFC before derivation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			programID, err := opts.Config.ProgramID()
			if err != nil {
				return f.Fail(ErrCodeConfig, "invalid program id", err, nil)
			}

			auth, err := program.DeriveAuthority(programID)
			if err != nil {
				return f.Fail(ErrCodeGeneric, "failed to derive authority", err, nil)
			}
			view := DeriveView{ProgramID: programID.String(), Authority: derivationView(auth)}

			if minter != "" || achievementID != "" {
				if minter == "" || achievementID == "" {
					return f.Fail(ErrCodeInput, "invalid arguments", fmt.Errorf("--minter and --achievement-id go together"), nil)
				}
				m, err := parseAddress("minter", minter, address.Zero)
				if err != nil {
					return f.Fail(ErrCodeInput, "invalid address", err, nil)
				}
				d, err := program.DeriveBadge(programID, program.BadgeRef{Minter: m, AchievementID: achievementID})
				if err != nil {
					return f.Fail(ErrCodeInput, "failed to derive badge", err, nil)
				}
				badge := derivationView(d)
				view.Badge = &badge
			}
			return f.Success(view)
		},
	}

	cmd.Flags().StringVar(&minter, "minter", "", "minter address")
	cmd.Flags().StringVar(&achievementID, "achievement-id", "", "achievement ID")
	return cmd
}
