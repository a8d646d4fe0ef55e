package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/achievemint/internal/client"
	"github.com/roach88/achievemint/internal/codec"
	"github.com/roach88/achievemint/internal/program"
	"github.com/roach88/achievemint/internal/wallet"
)

// AssertionContext provides what assertions need to inspect final state.
type AssertionContext struct {
	Ctx     context.Context
	Client  *client.Client
	Wallets *wallet.Book
	Trace   []TraceEvent
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Step, event.Op, event.Status, event.Code)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertBadgeOwner:
		return assertBadgeOwner(a, actx)
	case AssertBadgeAbsent:
		return assertBadgeAbsent(a, actx)
	case AssertBadgeFields:
		return assertBadgeFields(a, actx)
	case AssertAuthorityAdmin:
		return assertAuthorityAdmin(a, actx)
	case AssertBalanceAtLeast:
		return assertBalanceAtLeast(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (actx *AssertionContext) ref(a Assertion) program.BadgeRef {
	return program.BadgeRef{
		Minter:        actx.Wallets.Get(a.Minter).Address(),
		AchievementID: a.AchievementID,
	}
}

func (actx *AssertionContext) fail(a Assertion, expected, actual string) error {
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: actx.Trace}
}

func assertBadgeOwner(a Assertion, actx *AssertionContext) error {
	rec, _, err := actx.Client.Badge(actx.Ctx, actx.ref(a))
	if err != nil {
		return actx.fail(a, fmt.Sprintf("badge %s/%s owned by %s", a.Minter, a.AchievementID, a.Owner), err.Error())
	}
	want := actx.Wallets.Get(a.Owner).Address()
	if rec.Owner != want {
		return actx.fail(a, fmt.Sprintf("owner %s (%s)", a.Owner, want), fmt.Sprintf("owner %s", rec.Owner))
	}
	return nil
}

func assertBadgeAbsent(a Assertion, actx *AssertionContext) error {
	_, addr, err := actx.Client.Badge(actx.Ctx, actx.ref(a))
	if errors.Is(err, client.ErrBadgeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return actx.fail(a, fmt.Sprintf("no badge %s/%s", a.Minter, a.AchievementID), fmt.Sprintf("badge exists at %s", addr))
}

func assertBadgeFields(a Assertion, actx *AssertionContext) error {
	rec, _, err := actx.Client.Badge(actx.Ctx, actx.ref(a))
	if err != nil {
		return actx.fail(a, fmt.Sprintf("badge %s/%s", a.Minter, a.AchievementID), err.Error())
	}
	actual := badgeFields(rec)

	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want, err := codec.FromAny(a.Fields[k])
		if err != nil {
			return fmt.Errorf("fields.%s: %w", k, err)
		}
		got, ok := actual[k]
		if !ok {
			return actx.fail(a, fmt.Sprintf("field %s", k), "no such badge field")
		}
		if !sameValue(want, got) {
			return actx.fail(a, fmt.Sprintf("%s = %v", k, want), fmt.Sprintf("%s = %v", k, got))
		}
	}
	return nil
}

func assertAuthorityAdmin(a Assertion, actx *AssertionContext) error {
	rec, _, err := actx.Client.Authority(actx.Ctx)
	if err != nil {
		return actx.fail(a, fmt.Sprintf("administrator %s", a.Admin), err.Error())
	}
	want := actx.Wallets.Get(a.Admin).Address()
	if rec.Administrator != want {
		return actx.fail(a, fmt.Sprintf("administrator %s (%s)", a.Admin, want), fmt.Sprintf("administrator %s", rec.Administrator))
	}
	return nil
}

func assertBalanceAtLeast(a Assertion, actx *AssertionContext) error {
	got, err := actx.Client.Balance(actx.Ctx, actx.Wallets.Get(a.Wallet).Address())
	if err != nil {
		return err
	}
	if got < a.Lamports {
		return actx.fail(a, fmt.Sprintf("%s holds >= %d lamports", a.Wallet, a.Lamports), fmt.Sprintf("%d lamports", got))
	}
	return nil
}

// badgeFields exposes the comparable fields of a badge by their record keys.
func badgeFields(r program.BadgeRecord) map[string]codec.Value {
	return map[string]codec.Value{
		"owner":             codec.String(r.Owner.String()),
		"minter":            codec.String(r.Minter.String()),
		"name":              codec.String(r.Name),
		"description":       codec.String(r.Description),
		"rarity":            codec.String(r.Rarity),
		"unlock_percentage": codec.Int(r.UnlockPercentage),
		"achievement_id":    codec.String(r.AchievementID),
		"mint_timestamp":    codec.Int(r.MintTimestamp),
	}
}

// sameValue compares scalar values. Strings compare after NFC
// normalisation, as the badge stores them.
func sameValue(want, got codec.Value) bool {
	switch w := want.(type) {
	case codec.String:
		g, ok := got.(codec.String)
		return ok && program.Normalize(string(w)) == string(g)
	case codec.Int, codec.Bool:
		return want == got
	default:
		return false
	}
}
