package ledger

// Entry kinds.
const (
	KindTransaction = "transaction"
	KindAirdrop     = "airdrop"
)

// Entry statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one journaled submission. Payload holds the encoded transaction
// or airdrop so the journal can be replayed against an empty ledger.
type Entry struct {
	Seq      int64
	TxID     string
	TraceID  string
	Kind     string
	Slot     uint64
	UnixTime int64
	Status   string
	Code     string
	Payload  []byte
}
