package solana

import (
	"encoding/base64"
	"fmt"
)

// Transaction is a legacy transaction: an ordered signature list over a
// serialized message. Signature slot i belongs to account key i.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction wraps a message with empty signature slots for each
// required signer.
func NewTransaction(m Message) Transaction {
	return Transaction{
		Signatures: make([]Signature, m.Header.NumRequiredSignatures),
		Message:    m,
	}
}

// MessageData returns the bytes a signer signs.
func (tx *Transaction) MessageData() []byte {
	return tx.Message.Serialize()
}

// AddSignature places sig in the given signer slot.
func (tx *Transaction) AddSignature(index int, sig Signature) error {
	if index < 0 || index >= len(tx.Signatures) {
		return fmt.Errorf("signature index %d out of range (%d slots)", index, len(tx.Signatures))
	}
	tx.Signatures[index] = sig
	return nil
}

// IsSigned reports whether every required signature slot is filled.
func (tx *Transaction) IsSigned() bool {
	for _, sig := range tx.Signatures {
		if sig.IsZero() {
			return false
		}
	}
	return len(tx.Signatures) > 0
}

// ID is the transaction id: its first signature.
func (tx *Transaction) ID() Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}
	return tx.Signatures[0]
}

// Serialize renders the transaction in the legacy wire format.
func (tx *Transaction) Serialize() []byte {
	msg := tx.Message.Serialize()
	buf := make([]byte, 0, 1+len(tx.Signatures)*64+len(msg))
	buf = appendShortvecLen(buf, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		buf = append(buf, sig[:]...)
	}
	return append(buf, msg...)
}

// EncodeBase64 returns the base64 wire encoding used by sendTransaction.
func (tx *Transaction) EncodeBase64() string {
	return base64.StdEncoding.EncodeToString(tx.Serialize())
}

// TransactionFromBase64 parses a base64-encoded legacy transaction.
func TransactionFromBase64(s string) (Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid base64 transaction: %w", err)
	}
	return DeserializeTransaction(raw)
}

// DeserializeTransaction parses a legacy transaction from its wire bytes.
func DeserializeTransaction(buf []byte) (Transaction, error) {
	nSigs, n, err := readShortvecLen(buf)
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}
	pos := n
	if len(buf) < pos+nSigs*64 {
		return Transaction{}, fmt.Errorf("invalid transaction: truncated signatures")
	}

	tx := Transaction{Signatures: make([]Signature, nSigs)}
	for i := 0; i < nSigs; i++ {
		copy(tx.Signatures[i][:], buf[pos:pos+64])
		pos += 64
	}

	msg, consumed, err := deserializeMessage(buf[pos:])
	if err != nil {
		return Transaction{}, fmt.Errorf("invalid transaction message: %w", err)
	}
	if pos+consumed != len(buf) {
		return Transaction{}, fmt.Errorf("invalid transaction: %d trailing bytes", len(buf)-pos-consumed)
	}
	tx.Message = msg

	// A transaction parsed before signing may carry fewer signature slots
	// than the message requires; grow to the declared signer count.
	for len(tx.Signatures) < int(msg.Header.NumRequiredSignatures) {
		tx.Signatures = append(tx.Signatures, Signature{})
	}

	return tx, nil
}
