package txn

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/roach88/achievemint/internal/address"
	"github.com/roach88/achievemint/internal/codec"
)

var (
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrDuplicateSigner is returned when a signer appears twice.
	ErrDuplicateSigner = errors.New("duplicate signer")

	// ErrMalformed is returned when an encoded transaction cannot be decoded.
	ErrMalformed = errors.New("malformed transaction")
)

// AccountMeta names an account an instruction touches.
type AccountMeta struct {
	Address  address.Address
	Signer   bool
	Writable bool
}

// Instruction is a single call into a program.
type Instruction struct {
	ProgramID address.Address
	Name      string
	Accounts  []AccountMeta
	Args      codec.Object
}

// Signature binds a signer to the transaction message.
type Signature struct {
	Signer address.Address
	Bytes  []byte
}

// Transaction is one signed instruction.
type Transaction struct {
	Instruction Instruction
	Nonce       string
	Signatures  []Signature
}

// New creates an unsigned transaction.
func New(ix Instruction, nonce string) *Transaction {
	return &Transaction{Instruction: ix, Nonce: nonce}
}

// Message returns the canonical bytes that signers sign.
func (t *Transaction) Message() ([]byte, error) {
	data, err := codec.Marshal(t.messageObject())
	if err != nil {
		return nil, fmt.Errorf("transaction message: %w", err)
	}
	return data, nil
}

// ID returns the content-addressed transaction ID.
func (t *Transaction) ID() (string, error) {
	msg, err := t.Message()
	if err != nil {
		return "", err
	}
	return HashWithDomain(DomainTransaction, msg), nil
}

// Sign adds a signature from each keypair, replacing any earlier signature
// by the same signer.
func (t *Transaction) Sign(keys ...Keypair) error {
	msg, err := t.Message()
	if err != nil {
		return err
	}
	for _, k := range keys {
		sig := Signature{Signer: k.Address(), Bytes: k.Sign(msg)}
		replaced := false
		for i := range t.Signatures {
			if t.Signatures[i].Signer == sig.Signer {
				t.Signatures[i] = sig
				replaced = true
			}
		}
		if !replaced {
			t.Signatures = append(t.Signatures, sig)
		}
	}
	return nil
}

// Verify checks every attached signature and returns the set of signers.
// Whether the right identities signed is the program's decision.
func (t *Transaction) Verify() (SignerSet, error) {
	msg, err := t.Message()
	if err != nil {
		return nil, err
	}
	signers := make(SignerSet, len(t.Signatures))
	for _, sig := range t.Signatures {
		if signers.Has(sig.Signer) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSigner, sig.Signer)
		}
		if len(sig.Bytes) != ed25519.SignatureSize || !ed25519.Verify(sig.Signer.PublicKey(), msg, sig.Bytes) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, sig.Signer)
		}
		signers[sig.Signer] = struct{}{}
	}
	return signers, nil
}

// Encode returns the canonical JSON form including signatures.
func (t *Transaction) Encode() ([]byte, error) {
	obj := t.messageObject()
	sigs := make(codec.Array, len(t.Signatures))
	for i, sig := range t.Signatures {
		sigs[i] = codec.Object{
			"signer":    codec.String(sig.Signer.String()),
			"signature": codec.String(hex.EncodeToString(sig.Bytes)),
		}
	}
	obj["signatures"] = sigs
	return codec.Marshal(obj)
}

// Decode parses the output of Encode.
func Decode(data []byte) (*Transaction, error) {
	v, err := codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	obj, ok := v.(codec.Object)
	if !ok {
		return nil, fmt.Errorf("%w: expected object", ErrMalformed)
	}
	t, err := decodeTransaction(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return t, nil
}

func (t *Transaction) messageObject() codec.Object {
	accounts := make(codec.Array, len(t.Instruction.Accounts))
	for i, meta := range t.Instruction.Accounts {
		accounts[i] = codec.Object{
			"address":  codec.String(meta.Address.String()),
			"signer":   codec.Bool(meta.Signer),
			"writable": codec.Bool(meta.Writable),
		}
	}
	args := t.Instruction.Args
	if args == nil {
		args = codec.Object{}
	}
	return codec.Object{
		"program_id":  codec.String(t.Instruction.ProgramID.String()),
		"instruction": codec.String(t.Instruction.Name),
		"accounts":    accounts,
		"args":        args,
		"nonce":       codec.String(t.Nonce),
	}
}

func decodeTransaction(obj codec.Object) (*Transaction, error) {
	programText, err := obj.String("program_id")
	if err != nil {
		return nil, err
	}
	programID, err := address.Parse(programText)
	if err != nil {
		return nil, err
	}
	name, err := obj.String("instruction")
	if err != nil {
		return nil, err
	}
	nonce, err := obj.String("nonce")
	if err != nil {
		return nil, err
	}
	args, err := obj.Object("args")
	if err != nil {
		return nil, err
	}
	rawAccounts, err := obj.Array("accounts")
	if err != nil {
		return nil, err
	}

	accounts := make([]AccountMeta, len(rawAccounts))
	for i, raw := range rawAccounts {
		entry, ok := raw.(codec.Object)
		if !ok {
			return nil, fmt.Errorf("accounts[%d]: expected object", i)
		}
		text, err := entry.String("address")
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		addr, err := address.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		signer, err := entry.Bool("signer")
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		writable, err := entry.Bool("writable")
		if err != nil {
			return nil, fmt.Errorf("accounts[%d]: %w", i, err)
		}
		accounts[i] = AccountMeta{Address: addr, Signer: signer, Writable: writable}
	}

	t := New(Instruction{ProgramID: programID, Name: name, Accounts: accounts, Args: args}, nonce)

	if _, ok := obj["signatures"]; !ok {
		return t, nil
	}
	rawSigs, err := obj.Array("signatures")
	if err != nil {
		return nil, err
	}
	for i, raw := range rawSigs {
		entry, ok := raw.(codec.Object)
		if !ok {
			return nil, fmt.Errorf("signatures[%d]: expected object", i)
		}
		signerText, err := entry.String("signer")
		if err != nil {
			return nil, fmt.Errorf("signatures[%d]: %w", i, err)
		}
		signer, err := address.Parse(signerText)
		if err != nil {
			return nil, fmt.Errorf("signatures[%d]: %w", i, err)
		}
		sigHex, err := entry.String("signature")
		if err != nil {
			return nil, fmt.Errorf("signatures[%d]: %w", i, err)
		}
		sig, err := hex.DecodeString(sigHex)
		if err != nil {
			return nil, fmt.Errorf("signatures[%d]: %w", i, err)
		}
		t.Signatures = append(t.Signatures, Signature{Signer: signer, Bytes: sig})
	}
	return t, nil
}

// SignerSet is the set of identities whose signatures verified.
type SignerSet map[address.Address]struct{}

// Has reports whether a signed the transaction.
func (s SignerSet) Has(a address.Address) bool {
	_, ok := s[a]
	return ok
}
