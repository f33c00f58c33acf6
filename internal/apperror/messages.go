package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError:   "Configuration error",
	CodeConfigurationMissing: "Required configuration is missing",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Feeds
	CodeFeedUnavailable: "Feed unavailable, fallback reading used",
	CodeFeedNotFound:    "Feed is not registered",
	CodeFeedStale:       "Feed value is stale",

	// Decision / gate
	CodeRuleNotFound:    "No resolution rule for market",
	CodeInvalidRule:     "Invalid resolution rule",
	CodeLowConfidence:   "Confidence below threshold",
	CodeAlreadyResolved: "Market is already resolved",

	// Chain
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeChainWriteFailed:         "Chain write failed",
	CodeTransactionReverted:      "Transaction reverted",
	CodeAwaitingConfirmation:     "Previous transaction is still awaiting confirmation",
	CodeInvalidSigningKey:        "Signing key is invalid",

	CodeJournalError: "Resolution journal error",

	CodeLockHeld: "Signer lease is held by another process",

	// Market view / client
	CodeMarketNotFound:      "Market not found",
	CodeMarketFetchFailed:   "Failed to fetch market",
	CodeInvalidAmount:       "Amount must be a positive number",
	CodeInvalidOutcome:      "Outcome must be yes or no",
	CodeInsufficientBalance: "Insufficient token balance",
	CodeApprovalFailed:      "Token approval failed",
	CodeBetFailed:           "Placing the bet failed",
	CodeClaimFailed:         "Claiming winnings failed",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",

	CodeCircuitOpen: "Circuit breaker is open",
}
