package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market data errors
	ErrSourceUnavailable    = errors.New("market data source is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the market data source")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("authentication failed (check API keys)")
	ErrInvalidSymbol        = errors.New("invalid or unsupported symbol")
	ErrNoData               = errors.New("no data returned")
	ErrMalformedData        = errors.New("malformed market data")

	// Notification errors
	ErrNotificationFailed = errors.New("failed to deliver notification")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
