// Package solana provides the chain primitives the gateway and wallet work
// with: keys, signatures, blockhashes, commitment levels, and legacy
// transaction assembly.
package solana

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// Pubkey is an Ed25519 public key, rendered base58 on the wire.
type Pubkey [32]byte

func PubkeyFromBase58(s string) (Pubkey, error) {
	var pk Pubkey
	decoded := base58.Decode(s)
	if len(decoded) != len(pk) {
		return Pubkey{}, fmt.Errorf("invalid pubkey %q: decoded length %d, expected %d", s, len(decoded), len(pk))
	}
	copy(pk[:], decoded)
	return pk, nil
}

func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != len(pk) {
		return Pubkey{}, fmt.Errorf("invalid pubkey: %d bytes, expected %d", len(b), len(pk))
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk Pubkey) String() string {
	return base58.Encode(pk[:])
}

func (pk Pubkey) IsZero() bool {
	return pk == Pubkey{}
}

func (pk Pubkey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := PubkeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// Signature is an Ed25519 signature, rendered base58 on the wire. The first
// signature of a transaction doubles as its transaction id.
type Signature [64]byte

func SignatureFromBase58(s string) (Signature, error) {
	var sig Signature
	decoded := base58.Decode(s)
	if len(decoded) != len(sig) {
		return Signature{}, fmt.Errorf("invalid signature %q: decoded length %d, expected %d", s, len(decoded), len(sig))
	}
	copy(sig[:], decoded)
	return sig, nil
}

func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != len(sig) {
		return Signature{}, fmt.Errorf("invalid signature: %d bytes, expected %d", len(b), len(sig))
	}
	copy(sig[:], b)
	return sig, nil
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (s Signature) IsZero() bool {
	return s == Signature{}
}

// Blockhash is a recent block hash anchoring a transaction, base58 encoded.
type Blockhash [32]byte

func BlockhashFromBase58(s string) (Blockhash, error) {
	var h Blockhash
	decoded := base58.Decode(s)
	if len(decoded) != len(h) {
		return Blockhash{}, fmt.Errorf("invalid blockhash %q: decoded length %d, expected %d", s, len(decoded), len(h))
	}
	copy(h[:], decoded)
	return h, nil
}

func (h Blockhash) String() string {
	return base58.Encode(h[:])
}

func (h Blockhash) IsZero() bool {
	return h == Blockhash{}
}

// Commitment describes how finalized a block is.
type Commitment string

const (
	CommitmentProcessed = Commitment("processed")
	CommitmentConfirmed = Commitment("confirmed")
	CommitmentFinalized = Commitment("finalized")
)

// EpochInfo is the result of getEpochInfo.
type EpochInfo struct {
	AbsoluteSlot     uint64  `json:"absoluteSlot"`
	BlockHeight      uint64  `json:"blockHeight"`
	Epoch            uint64  `json:"epoch"`
	SlotIndex        uint64  `json:"slotIndex"`
	SlotsInEpoch     uint64  `json:"slotsInEpoch"`
	TransactionCount *uint64 `json:"transactionCount,omitempty"`
}

// Account is the value of a getAccountInfo response.
type Account struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       any    `json:"data"`
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// LatestBlockhash is the value of a getLatestBlockhash response.
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SignatureStatus is one entry of a getSignatureStatuses response value.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	ConfirmationStatus Commitment      `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// Version is the result of getVersion.
type Version struct {
	SolanaCore string `json:"solana-core"`
	FeatureSet uint64 `json:"feature-set"`
}
