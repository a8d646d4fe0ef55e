package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/achievemint/internal/harness"
	"github.com/roach88/achievemint/internal/ledger"
)

// ReplayView summarises a replay of the journal.
type ReplayView struct {
	Entries       int              `json:"entries"`
	Deterministic bool             `json:"deterministic"`
	LiveDigest    string           `json:"live_digest"`
	ReplayDigest  string           `json:"replay_digest"`
	Divergences   []DivergenceView `json:"divergences,omitempty"`
}

// DivergenceView is a journal entry whose replayed outcome differed.
type DivergenceView struct {
	Seq  int64  `json:"seq"`
	TxID string `json:"tx_id"`
	Want string `json:"want"`
	Got  string `json:"got"`
}

func (v ReplayView) String() string {
	var b strings.Builder
	verdict := "deterministic"
	if !v.Deterministic {
		verdict = "DIVERGED"
	}
	fmt.Fprintf(&b, "replayed %d entries: %s\n", v.Entries, verdict)
	fmt.Fprintf(&b, "live:   %s\n", v.LiveDigest)
	fmt.Fprintf(&b, "replay: %s", v.ReplayDigest)
	for _, d := range v.Divergences {
		fmt.Fprintf(&b, "\n  seq %d %s: want %s, got %s", d.Seq, d.TxID, d.Want, d.Got)
	}
	return b.String()
}

func outcome(status, code string) string {
	if code == "" {
		return status
	}
	return status + "/" + code
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and compare the result with the ledger",
		Long: `Re-execute every journaled submission against an empty in-memory ledger
with its recorded slot, time and trace ID. The replay is deterministic when
every entry reproduces its recorded outcome and the final state digests
match. Exits 1 otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			s, err := opts.openSession(cmd.Context())
			if err != nil {
				return f.Fail(ErrCodeDatabase, "failed to open ledger", err, nil)
			}
			defer s.Close()

			target := ledger.NewMemory()
			defer target.Close()

			rep, err := s.engine.Replay(cmd.Context(), target)
			if err != nil {
				return f.Fail(ErrCodeDatabase, "replay failed", err, nil)
			}

			view := ReplayView{
				Entries:       rep.Entries,
				Deterministic: rep.Deterministic(),
				LiveDigest:    rep.LiveDigest,
				ReplayDigest:  rep.ReplayDigest,
			}
			for _, d := range rep.Divergences {
				view.Divergences = append(view.Divergences, DivergenceView{
					Seq:  d.Seq,
					TxID: d.TxID,
					Want: outcome(d.WantStatus, d.WantCode),
					Got:  outcome(d.GotStatus, d.GotCode),
				})
			}
			if err := f.Success(view); err != nil {
				return err
			}
			if !view.Deterministic {
				return NewExitError(ExitFailure, "replay diverged from the ledger")
			}
			return nil
		},
	}
}

// ScenarioView is the outcome of one scenario.
type ScenarioView struct {
	Name   string               `json:"name"`
	File   string               `json:"file"`
	Pass   bool                 `json:"pass"`
	Digest string               `json:"digest"`
	Trace  []harness.TraceEvent `json:"trace"`
	Errors []string             `json:"errors,omitempty"`
}

// RunView lists scenario outcomes.
type RunView struct {
	Passed    int            `json:"passed"`
	Failed    int            `json:"failed"`
	Scenarios []ScenarioView `json:"scenarios"`
}

func (v RunView) String() string {
	var b strings.Builder
	for _, s := range v.Scenarios {
		mark := "PASS"
		if !s.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s (%s)\n", mark, s.Name, s.File)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "      %s\n", e)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed", v.Passed, v.Failed)
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run SCENARIO...",
		Short: "Run scenario files against a fresh ledger",
		Long: `Run YAML or CUE scenario files. Each scenario runs against its own
in-memory ledger with deterministic keys, nonces and time, and is checked
against its expected codes and assertions. Exits 1 if any scenario fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)

			runOpts := []harness.Option{harness.WithLogger(opts.Logger)}
			if opts.metrics != nil {
				runOpts = append(runOpts, harness.WithObserver(opts.metrics))
			}

			var view RunView
			for _, path := range args {
				scenario, err := harness.LoadScenario(path)
				if err != nil {
					return f.Fail(ErrCodeInput, "invalid scenario", err, map[string]string{"file": path})
				}
				f.VerboseLog("running %s from %s", scenario.Name, path)

				result, err := harness.Run(cmd.Context(), scenario, runOpts...)
				if err != nil {
					return f.Fail(ErrCodeGeneric, "scenario aborted", err, map[string]string{"file": path})
				}

				view.Scenarios = append(view.Scenarios, ScenarioView{
					Name:   scenario.Name,
					File:   path,
					Pass:   result.Pass,
					Digest: result.Digest,
					Trace:  result.Trace,
					Errors: result.Errors,
				})
				if result.Pass {
					view.Passed++
				} else {
					view.Failed++
				}
			}

			if err := f.Success(view); err != nil {
				return err
			}
			if view.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", view.Failed))
			}
			return nil
		},
	}
}
