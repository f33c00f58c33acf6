// Package asset models ERC20 token quantities in their smallest unit.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Token is the metadata of an ERC20 token. The address is its identity.
type Token struct {
	address  common.Address
	symbol   string
	decimals uint8
}

// NewToken creates a token. It panics on an empty symbol or more than 30
// decimals, both of which indicate misconfiguration.
func NewToken(address common.Address, symbol string, decimals uint8) *Token {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic(fmt.Sprintf("asset: suspicious decimals %d", decimals))
	}
	return &Token{address: address, symbol: symbol, decimals: decimals}
}

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.address }

// Symbol returns the ticker symbol.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the number of decimal places.
func (t *Token) Decimals() uint8 { return t.decimals }

func (t *Token) String() string { return t.symbol }

// Equals compares two tokens by address.
func (t *Token) Equals(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.address == other.address
}
