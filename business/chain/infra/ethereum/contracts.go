package ethereum

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// PredictionMarketABI covers the market reads, betting and resolveMarket.
const PredictionMarketABI = `[
	{
		"inputs": [],
		"name": "marketCounter",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "_marketId", "type": "uint256"}],
		"name": "getMarket",
		"outputs": [
			{"name": "question", "type": "string"},
			{"name": "description", "type": "string"},
			{"name": "endTime", "type": "uint256"},
			{"name": "resolutionTime", "type": "uint256"},
			{"name": "state", "type": "uint8"},
			{"name": "totalYesAmount", "type": "uint256"},
			{"name": "totalNoAmount", "type": "uint256"},
			{"name": "resolved", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "", "type": "uint256"}],
		"name": "markets",
		"outputs": [
			{"name": "id", "type": "uint256"},
			{"name": "question", "type": "string"},
			{"name": "description", "type": "string"},
			{"name": "endTime", "type": "uint256"},
			{"name": "totalYesAmount", "type": "uint256"},
			{"name": "totalNoAmount", "type": "uint256"},
			{"name": "resolved", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_marketId", "type": "uint256"},
			{"name": "_outcome", "type": "uint8"},
			{"name": "_betAmount", "type": "uint256"}
		],
		"name": "calculatePotentialWinnings",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_marketId", "type": "uint256"},
			{"name": "_outcome", "type": "uint8"},
			{"name": "_amount", "type": "uint256"}
		],
		"name": "placeBet",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "_marketId", "type": "uint256"}],
		"name": "claimWinnings",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "_marketId", "type": "uint256"},
			{"name": "_outcome", "type": "uint8"}
		],
		"name": "resolveMarket",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// OracleResolverABI only includes submitResolution.
const OracleResolverABI = `[
	{
		"inputs": [
			{"name": "_marketId", "type": "uint256"},
			{"name": "_outcome", "type": "uint8"},
			{"name": "_confidence", "type": "uint256"}
		],
		"name": "submitResolution",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// ERC20ABI is the subset of ERC20 used for bets.
const ERC20ABI = `[
	{
		"inputs": [
			{"name": "spender", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"name": "allowance",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	marketABI = mustParseABI("prediction market", PredictionMarketABI)
	oracleABI = mustParseABI("oracle resolver", OracleResolverABI)
	erc20ABI  = mustParseABI("erc20", ERC20ABI)
)

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(name + " abi parse: " + err.Error())
	}
	return parsed
}
