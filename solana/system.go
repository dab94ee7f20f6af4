package solana

import "encoding/binary"

// SystemProgramID is the native system program.
var SystemProgramID = mustPubkey("11111111111111111111111111111111")

// systemInstructionTransfer is the system program's transfer instruction tag.
const systemInstructionTransfer = 2

// NewTransferInstruction moves lamports between two accounts via the system
// program.
func NewTransferInstruction(from, to Pubkey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemInstructionTransfer)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{Pubkey: from, Signer: true, Writable: true},
			{Pubkey: to, Writable: true},
		},
		Data: data,
	}
}

func mustPubkey(s string) Pubkey {
	pk, err := PubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}
