package solana

import (
	"fmt"
)

// AccountMeta describes how one account participates in an instruction.
type AccountMeta struct {
	Pubkey   Pubkey
	Signer   bool
	Writable bool
}

// Instruction is one program invocation within a transaction.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// MessageHeader counts the signature and read-only segments of the account
// key list.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// Message is a legacy (pre-versioned) transaction message: the payload that
// gets signed.
type Message struct {
	Header          MessageHeader
	AccountKeys     []Pubkey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

// CompiledInstruction references accounts by their index into AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// NewMessage compiles instructions into a legacy message. The fee payer is
// placed first; remaining keys are ordered writable-signers,
// readonly-signers, writable-non-signers, readonly-non-signers, preserving
// first-appearance order within each class.
func NewMessage(feePayer Pubkey, instructions []Instruction, recentBlockhash Blockhash) (Message, error) {
	if feePayer.IsZero() {
		return Message{}, fmt.Errorf("fee payer is required")
	}
	if len(instructions) == 0 {
		return Message{}, fmt.Errorf("a message requires at least one instruction")
	}

	type keyMeta struct {
		pubkey   Pubkey
		signer   bool
		writable bool
		order    int
	}

	metas := map[Pubkey]*keyMeta{}
	order := 0
	upsert := func(pk Pubkey, signer, writable bool) {
		m, ok := metas[pk]
		if !ok {
			m = &keyMeta{pubkey: pk, order: order}
			order++
			metas[pk] = m
		}
		m.signer = m.signer || signer
		m.writable = m.writable || writable
	}

	upsert(feePayer, true, true)
	for _, ix := range instructions {
		upsert(ix.ProgramID, false, false)
		for _, acc := range ix.Accounts {
			upsert(acc.Pubkey, acc.Signer, acc.Writable)
		}
	}

	classOf := func(m *keyMeta) int {
		switch {
		case m.pubkey == feePayer:
			return 0
		case m.signer && m.writable:
			return 1
		case m.signer:
			return 2
		case m.writable:
			return 3
		default:
			return 4
		}
	}

	sorted := make([]*keyMeta, 0, len(metas))
	for _, m := range metas {
		sorted = append(sorted, m)
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0; j-- {
			a, b := sorted[j-1], sorted[j]
			if classOf(a) > classOf(b) || (classOf(a) == classOf(b) && a.order > b.order) {
				sorted[j-1], sorted[j] = b, a
			} else {
				break
			}
		}
	}

	var header MessageHeader
	keys := make([]Pubkey, len(sorted))
	index := map[Pubkey]uint8{}
	for i, m := range sorted {
		if i > 255 {
			return Message{}, fmt.Errorf("too many account keys")
		}
		keys[i] = m.pubkey
		index[m.pubkey] = uint8(i)
		if m.signer {
			header.NumRequiredSignatures++
			if !m.writable {
				header.NumReadonlySignedAccounts++
			}
		} else if !m.writable {
			header.NumReadonlyUnsignedAccounts++
		}
	}

	compiled := make([]CompiledInstruction, len(instructions))
	for i, ix := range instructions {
		ci := CompiledInstruction{
			ProgramIDIndex: index[ix.ProgramID],
			Data:           ix.Data,
		}
		for _, acc := range ix.Accounts {
			ci.AccountIndexes = append(ci.AccountIndexes, index[acc.Pubkey])
		}
		compiled[i] = ci
	}

	return Message{
		Header:          header,
		AccountKeys:     keys,
		RecentBlockhash: recentBlockhash,
		Instructions:    compiled,
	}, nil
}

// Serialize renders the message in the legacy wire format. This is the byte
// string that transaction signatures are computed over.
func (m Message) Serialize() []byte {
	buf := make([]byte, 0, 3+1+len(m.AccountKeys)*32+32+1)
	buf = append(buf, m.Header.NumRequiredSignatures, m.Header.NumReadonlySignedAccounts, m.Header.NumReadonlyUnsignedAccounts)

	buf = appendShortvecLen(buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf = append(buf, key[:]...)
	}

	buf = append(buf, m.RecentBlockhash[:]...)

	buf = appendShortvecLen(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.ProgramIDIndex)
		buf = appendShortvecLen(buf, len(ix.AccountIndexes))
		buf = append(buf, ix.AccountIndexes...)
		buf = appendShortvecLen(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	return buf
}

// deserializeMessage parses a legacy message. Versioned messages (high bit
// set on the first byte) are rejected: the wallet only assembles and signs
// legacy transactions.
func deserializeMessage(buf []byte) (Message, int, error) {
	if len(buf) == 0 {
		return Message{}, 0, fmt.Errorf("empty message")
	}
	if buf[0]&0x80 != 0 {
		return Message{}, 0, fmt.Errorf("versioned messages are not supported")
	}
	if len(buf) < 3 {
		return Message{}, 0, fmt.Errorf("truncated message header")
	}

	var m Message
	m.Header = MessageHeader{
		NumRequiredSignatures:       buf[0],
		NumReadonlySignedAccounts:   buf[1],
		NumReadonlyUnsignedAccounts: buf[2],
	}
	pos := 3

	nKeys, n, err := readShortvecLen(buf[pos:])
	if err != nil {
		return Message{}, 0, err
	}
	pos += n
	if len(buf) < pos+nKeys*32 {
		return Message{}, 0, fmt.Errorf("truncated account keys")
	}
	m.AccountKeys = make([]Pubkey, nKeys)
	for i := 0; i < nKeys; i++ {
		copy(m.AccountKeys[i][:], buf[pos:pos+32])
		pos += 32
	}

	if len(buf) < pos+32 {
		return Message{}, 0, fmt.Errorf("truncated recent blockhash")
	}
	copy(m.RecentBlockhash[:], buf[pos:pos+32])
	pos += 32

	nInstr, n, err := readShortvecLen(buf[pos:])
	if err != nil {
		return Message{}, 0, err
	}
	pos += n
	m.Instructions = make([]CompiledInstruction, nInstr)
	for i := 0; i < nInstr; i++ {
		if pos >= len(buf) {
			return Message{}, 0, fmt.Errorf("truncated instruction %d", i)
		}
		ci := CompiledInstruction{ProgramIDIndex: buf[pos]}
		pos++

		nAccounts, n, err := readShortvecLen(buf[pos:])
		if err != nil {
			return Message{}, 0, err
		}
		pos += n
		if len(buf) < pos+nAccounts {
			return Message{}, 0, fmt.Errorf("truncated instruction %d accounts", i)
		}
		ci.AccountIndexes = append([]uint8(nil), buf[pos:pos+nAccounts]...)
		pos += nAccounts

		nData, n, err := readShortvecLen(buf[pos:])
		if err != nil {
			return Message{}, 0, err
		}
		pos += n
		if len(buf) < pos+nData {
			return Message{}, 0, fmt.Errorf("truncated instruction %d data", i)
		}
		ci.Data = append([]byte(nil), buf[pos:pos+nData]...)
		pos += nData

		m.Instructions[i] = ci
	}

	return m, pos, nil
}
