package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// TxStatus is what the node currently knows about a transaction.
type TxStatus string

const (
	// TxUnknown means the node has neither a receipt nor a pending entry,
	// i.e. the transaction was dropped or never broadcast.
	TxUnknown   TxStatus = "unknown"
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxReverted  TxStatus = "reverted"
)

// Receipt summarizes a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Status      TxStatus
}
