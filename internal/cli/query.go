package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/client"
	"github.com/roach88/achievemint/internal/ledger"
	"github.com/roach88/achievemint/internal/program"
)

// BadgeView is a decoded badge record.
type BadgeView struct {
	Address          string `json:"address"`
	Owner            string `json:"owner"`
	Minter           string `json:"minter"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Rarity           string `json:"rarity"`
	UnlockPercentage uint8  `json:"unlock_percentage"`
	AchievementID    string `json:"achievement_id"`
	MintTimestamp    int64  `json:"mint_timestamp"`
	Bump             uint8  `json:"bump"`
}

func (v BadgeView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "badge:       %s\n", v.Address)
	fmt.Fprintf(&b, "achievement: %s\n", v.AchievementID)
	fmt.Fprintf(&b, "name:        %s\n", v.Name)
	fmt.Fprintf(&b, "description: %s\n", v.Description)
	fmt.Fprintf(&b, "rarity:      %s (%d%% unlocked)\n", v.Rarity, v.UnlockPercentage)
	fmt.Fprintf(&b, "owner:       %s\n", v.Owner)
	fmt.Fprintf(&b, "minter:      %s\n", v.Minter)
	fmt.Fprintf(&b, "minted:      %s", time.Unix(v.MintTimestamp, 0).UTC().Format(time.RFC3339))
	return b.String()
}

// AuthorityView is the decoded authority record.
type AuthorityView struct {
	Address       string `json:"address"`
	Administrator string `json:"administrator"`
	Bump          uint8  `json:"bump"`
}

func (v AuthorityView) String() string {
	return fmt.Sprintf("authority:     %s\nadministrator: %s", v.Address, v.Administrator)
}

// NewShowCommand creates the show command and its subcommands.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a record from the ledger",
	}
	cmd.AddCommand(newShowBadgeCommand(opts))
	cmd.AddCommand(newShowAuthorityCommand(opts))
	return cmd
}

func newShowBadgeCommand(opts *RootOptions) *cobra.Command {
	var minter, achievementID string

	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Show a badge by minter and achievement ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			m, err := parseAddress("minter", minter, address.Zero)
			if err != nil {
				return f.Fail(ErrCodeInput, "invalid address", err, nil)
			}

			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			rec, addr, err := s.client.Badge(cmd.Context(), program.BadgeRef{Minter: m, AchievementID: achievementID})
			if errors.Is(err, client.ErrBadgeNotFound) {
				return f.Fail(ErrCodeInput, "badge not found", err, nil)
			}
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to read badge", err, nil)
			}
			return f.Success(BadgeView{
				Address:          addr.String(),
				Owner:            rec.Owner.String(),
				Minter:           rec.Minter.String(),
				Name:             rec.Name,
				Description:      rec.Description,
				Rarity:           rec.Rarity,
				UnlockPercentage: rec.UnlockPercentage,
				AchievementID:    rec.AchievementID,
				MintTimestamp:    rec.MintTimestamp,
				Bump:             rec.Bump,
			})
		},
	}

	cmd.Flags().StringVar(&minter, "minter", "", "minter address (required)")
	cmd.Flags().StringVar(&achievementID, "achievement-id", "", "achievement ID (required)")
	_ = cmd.MarkFlagRequired("minter")
	_ = cmd.MarkFlagRequired("achievement-id")
	return cmd
}

func newShowAuthorityCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "authority",
		Short: "Show the authority record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			rec, addr, err := s.client.Authority(cmd.Context())
			if errors.Is(err, client.ErrNotBootstrapped) {
				return f.Fail(ErrCodeInput, "authority not found", err, nil)
			}
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to read authority", err, nil)
			}
			return f.Success(AuthorityView{
				Address:       addr.String(),
				Administrator: rec.Administrator.String(),
				Bump:          rec.Bump,
			})
		},
	}
}

// BalanceView is the balance of one address.
type BalanceView struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

func (v BalanceView) String() string {
	return fmt.Sprintf("%s: %d lamports", v.Address, v.Lamports)
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance ADDRESS",
		Short: "Show the lamports held at an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			addr, err := address.Parse(args[0])
			if err != nil {
				return f.Fail(ErrCodeInput, "invalid address", err, nil)
			}

			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			lamports, err := s.client.Balance(cmd.Context(), addr)
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to read balance", err, nil)
			}
			return f.Success(BalanceView{Address: addr.String(), Lamports: lamports})
		},
	}
}

// EntryView is one journal entry.
type EntryView struct {
	Seq      int64  `json:"seq"`
	TxID     string `json:"tx_id"`
	TraceID  string `json:"trace_id"`
	Kind     string `json:"kind"`
	Slot     uint64 `json:"slot"`
	UnixTime int64  `json:"unix_time"`
	Status   string `json:"status"`
	Code     string `json:"code,omitempty"`
}

// JournalView lists journal entries in order.
type JournalView struct {
	Entries []EntryView `json:"entries"`
}

func (v JournalView) String() string {
	if len(v.Entries) == 0 {
		return "journal is empty"
	}
	var b strings.Builder
	for i, e := range v.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%4d  slot %-4d %-11s %-6s %s", e.Seq, e.Slot, e.Kind, e.Status, e.TxID)
		if e.Code != "" {
			fmt.Fprintf(&b, " [%s]", e.Code)
		}
	}
	return b.String()
}

// NewLogCommand creates the log command.
func NewLogCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List journaled submissions",
		Long: `List journal entries in sequence order. With --limit, only the most
recent entries are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			entries, err := s.store.Journal(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to read journal", err, nil)
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			view := JournalView{Entries: make([]EntryView, 0, len(entries))}
			for _, e := range entries {
				view.Entries = append(view.Entries, entryView(e))
			}
			return f.Success(view)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last N entries")
	return cmd
}

func entryView(e ledger.Entry) EntryView {
	return EntryView{
		Seq:      e.Seq,
		TxID:     e.TxID,
		TraceID:  e.TraceID,
		Kind:     e.Kind,
		Slot:     e.Slot,
		UnixTime: e.UnixTime,
		Status:   e.Status,
		Code:     e.Code,
	}
}
