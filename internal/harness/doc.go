// Package harness runs badge scenarios against a fresh ledger.
//
// A scenario names a set of wallets, funds some of them, and submits a
// sequence of steps through the client. Each step records a trace event
// (op, status and error code). Assertions then inspect the final ledger.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files. Both are checked against the #Scenario
// schema in schema.cue before they run:
//
//	name: transfer_then_burn
//	description: "A badge moves to bob, who burns it"
//	wallets: [admin, alice, bob]
//	airdrop:
//	  admin: 1000000000
//	  alice: 1000000000
//	steps:
//	  - op: bootstrap
//	    signer: admin
//	  - op: mint
//	    payer: alice
//	    args:
//	      name: "First Blood"
//	      description: "Win a match"
//	      rarity: common
//	      unlock_percentage: 42
//	      achievement_id: first-blood
//	  - op: transfer
//	    signer: alice
//	    new_owner: bob
//	    args: {achievement_id: first-blood}
//	  - op: burn
//	    signer: bob
//	    minter: alice
//	    args: {achievement_id: first-blood}
//	    expect: {code: OK}
//	assertions:
//	  - type: badge_absent
//	    minter: alice
//	    achievement_id: first-blood
//
// # Steps
//
//   - bootstrap: signer is the administrator; payer defaults to signer
//   - mint: payer signs; owner defaults to payer
//   - transfer: signer is the current owner; minter defaults to signer
//   - burn: signer is the owner; minter defaults to signer
//   - airdrop: owner receives args.lamports
//
// A step without expect must succeed. expect.code names the error code the
// step must fail with, or OK.
//
// # Assertion Types
//
//   - badge_owner: the badge at (minter, achievement_id) is owned by owner
//   - badge_absent: no badge exists at (minter, achievement_id)
//   - badge_fields: the badge fields match fields (subset match)
//   - authority_admin: the authority administrator is admin
//   - balance_at_least: wallet holds at least lamports
//
// # Deterministic Testing
//
// Wallet keys are seeded from their names, ledger time is frozen at
// testutil.DefaultEpoch, and nonces and trace IDs are sequential, so a
// scenario produces the same transaction IDs and trace on every run.
package harness
