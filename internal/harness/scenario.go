package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Scenario defines a badge scenario: wallets, funding, steps and the
// assertions that must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Wallets lists the named identities the scenario may use.
	Wallets []string `yaml:"wallets"`

	// Airdrop funds wallets before the first step, in name order.
	Airdrop map[string]uint64 `yaml:"airdrop,omitempty"`

	Config ScenarioConfig `yaml:"config,omitempty"`

	// Steps run in order. A failing step does not stop the scenario.
	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioConfig selects program options.
type ScenarioConfig struct {
	RestrictMint bool `yaml:"restrict_mint,omitempty"`
}

// Step is one submitted instruction.
type Step struct {
	Op       string         `yaml:"op"`
	Signer   string         `yaml:"signer,omitempty"`
	Payer    string         `yaml:"payer,omitempty"`
	Owner    string         `yaml:"owner,omitempty"`
	NewOwner string         `yaml:"new_owner,omitempty"`
	Minter   string         `yaml:"minter,omitempty"`
	Args     map[string]any `yaml:"args,omitempty"`

	// Expect is the expected outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect names the code a step must finish with.
type Expect struct {
	// Code is an error code such as NOT_OWNER, or OK for success.
	Code string `yaml:"code"`
}

// ExpectOK is the expect code for a successful step.
const ExpectOK = "OK"

// Assertion validates final ledger state.
type Assertion struct {
	Type          string         `yaml:"type"`
	Minter        string         `yaml:"minter,omitempty"`
	AchievementID string         `yaml:"achievement_id,omitempty"`
	Owner         string         `yaml:"owner,omitempty"`
	Admin         string         `yaml:"admin,omitempty"`
	Wallet        string         `yaml:"wallet,omitempty"`
	Lamports      uint64         `yaml:"lamports,omitempty"`
	Fields        map[string]any `yaml:"fields,omitempty"`
}

// Step ops.
const (
	OpBootstrap = "bootstrap"
	OpMint      = "mint"
	OpTransfer  = "transfer"
	OpBurn      = "burn"
	OpAirdrop   = "airdrop"
)

// Assertion type constants.
const (
	AssertBadgeOwner     = "badge_owner"
	AssertBadgeAbsent    = "badge_absent"
	AssertBadgeFields    = "badge_fields"
	AssertAuthorityAdmin = "authority_admin"
	AssertBalanceAtLeast = "balance_at_least"
)

// LoadScenario reads a .yaml, .yml or .cue scenario file, checks it against
// the #Scenario schema and the wallet cross references, and decodes it.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Base(path))
}

// ParseScenario parses scenario source. The filename extension selects
// CUE or YAML.
func ParseScenario(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()

	var v cue.Value
	if strings.EqualFold(filepath.Ext(filename), ".cue") {
		v = ctx.CompileBytes(data, cue.Filename(filename))
	} else {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		v = ctx.Encode(raw)
	}
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("%s: %s", filename, cueerrors.Details(err, nil))
	}

	checked, err := checkSchema(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	// The schema-checked value is re-read through yaml.v3 (JSON is YAML)
	// so both source formats land in the same struct.
	js, err := checked.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%s: export: %w", filename, err)
	}
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(js))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", filename, err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", filename, err)
	}
	return &scenario, nil
}

// checkSchema unifies v with #Scenario and requires a concrete result.
func checkSchema(ctx *cue.Context, v cue.Value) (cue.Value, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, fmt.Errorf("schema: %s", cueerrors.Details(err, nil))
	}
	return unified, nil
}

// validateScenario checks what the schema cannot: per-op required fields
// and references to declared wallets.
func validateScenario(s *Scenario) error {
	declared := make(map[string]bool, len(s.Wallets))
	for _, w := range s.Wallets {
		if declared[w] {
			return fmt.Errorf("wallet %q declared twice", w)
		}
		declared[w] = true
	}
	known := func(where, name string) error {
		if name != "" && !declared[name] {
			return fmt.Errorf("%s: unknown wallet %q", where, name)
		}
		return nil
	}

	for name := range s.Airdrop {
		if err := known("airdrop", name); err != nil {
			return err
		}
	}

	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		for _, ref := range []string{step.Signer, step.Payer, step.Owner, step.NewOwner, step.Minter} {
			if err := known(where, ref); err != nil {
				return err
			}
		}
		if err := validateStep(where, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		where := fmt.Sprintf("assertions[%d]", i)
		for _, ref := range []string{a.Minter, a.Owner, a.Admin, a.Wallet} {
			if err := known(where, ref); err != nil {
				return err
			}
		}
		if err := validateAssertion(where, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, s Step) error {
	switch s.Op {
	case OpBootstrap:
		if s.Signer == "" {
			return fmt.Errorf("%s: signer is required for bootstrap", where)
		}
	case OpMint:
		if s.Payer == "" && s.Signer == "" {
			return fmt.Errorf("%s: payer is required for mint", where)
		}
	case OpTransfer:
		if s.Signer == "" || s.NewOwner == "" {
			return fmt.Errorf("%s: signer and new_owner are required for transfer", where)
		}
		if _, ok := s.Args["achievement_id"]; !ok {
			return fmt.Errorf("%s: args.achievement_id is required for transfer", where)
		}
	case OpBurn:
		if s.Signer == "" {
			return fmt.Errorf("%s: signer is required for burn", where)
		}
		if _, ok := s.Args["achievement_id"]; !ok {
			return fmt.Errorf("%s: args.achievement_id is required for burn", where)
		}
	case OpAirdrop:
		if s.Owner == "" {
			return fmt.Errorf("%s: owner is required for airdrop", where)
		}
		if _, ok := s.Args["lamports"]; !ok {
			return fmt.Errorf("%s: args.lamports is required for airdrop", where)
		}
	default:
		return fmt.Errorf("%s: unknown op %q", where, s.Op)
	}
	return nil
}

func validateAssertion(where string, a Assertion) error {
	needBadge := func() error {
		if a.Minter == "" || a.AchievementID == "" {
			return fmt.Errorf("%s: minter and achievement_id are required for %s", where, a.Type)
		}
		return nil
	}
	switch a.Type {
	case AssertBadgeOwner:
		if err := needBadge(); err != nil {
			return err
		}
		if a.Owner == "" {
			return fmt.Errorf("%s: owner is required for badge_owner", where)
		}
	case AssertBadgeAbsent:
		return needBadge()
	case AssertBadgeFields:
		if err := needBadge(); err != nil {
			return err
		}
		if len(a.Fields) == 0 {
			return fmt.Errorf("%s: fields is required for badge_fields", where)
		}
	case AssertAuthorityAdmin:
		if a.Admin == "" {
			return fmt.Errorf("%s: admin is required for authority_admin", where)
		}
	case AssertBalanceAtLeast:
		if a.Wallet == "" {
			return fmt.Errorf("%s: wallet is required for balance_at_least", where)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}
	return nil
}
