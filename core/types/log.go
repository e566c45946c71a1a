package types

// Log is an event emitted by a contract, enriched with its position in
// the chain once the containing block is sealed.
type Log struct {
	// Consensus fields, produced by the EVM.
	Address Address
	Topics  []Hash
	Data    []byte

	// Derived fields, filled in by receipt derivation.
	BlockNumber uint64
	TxHash      Hash
	TxIndex     uint
	BlockHash   Hash
	Index       uint

	// Removed is true when the log was reverted by a chain truncation.
	Removed bool
}

// Copy returns a deep copy of the log.
func (l *Log) Copy() *Log {
	cpy := *l
	cpy.Topics = make([]Hash, len(l.Topics))
	copy(cpy.Topics, l.Topics)
	cpy.Data = CopyBytes(l.Data)
	return &cpy
}

// rlpLog is the consensus RLP shape of a log.
type rlpLog struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

func (l *Log) rlpFields() *rlpLog {
	return &rlpLog{Address: l.Address, Topics: l.Topics, Data: l.Data}
}
