package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration. ConfigurationMissing is fatal at startup.
	CodeConfigurationError   Code = "CONFIGURATION_ERROR"
	CodeConfigurationMissing Code = "CONFIGURATION_MISSING"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Resolver error codes
const (
	// Feeds
	CodeFeedUnavailable Code = "FEED_UNAVAILABLE"
	CodeFeedNotFound    Code = "FEED_NOT_FOUND"
	CodeFeedStale       Code = "FEED_STALE"

	// Decision / gate
	CodeRuleNotFound    Code = "RULE_NOT_FOUND"
	CodeInvalidRule     Code = "INVALID_RULE"
	CodeLowConfidence   Code = "LOW_CONFIDENCE"
	CodeAlreadyResolved Code = "ALREADY_RESOLVED"

	// Chain
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeChainWriteFailed         Code = "CHAIN_WRITE_FAILED"
	CodeTransactionReverted      Code = "TRANSACTION_REVERTED"
	CodeAwaitingConfirmation     Code = "AWAITING_CONFIRMATION"
	CodeInvalidSigningKey        Code = "INVALID_SIGNING_KEY"

	// Journal
	CodeJournalError Code = "JOURNAL_ERROR"

	// Single-writer lease
	CodeLockHeld Code = "LOCK_HELD"

	// Market view / client
	CodeMarketNotFound      Code = "MARKET_NOT_FOUND"
	CodeMarketFetchFailed   Code = "MARKET_FETCH_FAILED"
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeInvalidOutcome      Code = "INVALID_OUTCOME"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeApprovalFailed      Code = "APPROVAL_FAILED"
	CodeBetFailed           Code = "BET_FAILED"
	CodeClaimFailed         Code = "CLAIM_FAILED"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
