package fetch

import "fmt"

// Error codes carried by FetchError.
const (
	ErrCodeNetwork     = "NETWORK_ERROR"
	ErrCodeHTTP        = "HTTP_ERROR"
	ErrCodeDecode      = "DECODE_ERROR"
	ErrCodeNoData      = "NO_DATA"
	ErrCodeNoSymbol    = "NO_SYMBOL"
	ErrCodeCircuitOpen = "CIRCUIT_OPEN"
)

// FetchError is a provider-specific download failure. Temporary marks
// errors worth retrying on a later run (timeouts, 5xx, open breaker).
type FetchError struct {
	Provider   string
	Symbol     string
	Code       string
	Message    string
	HTTPStatus int
	Temporary  bool
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("provider %s: %s: %s (%s)", e.Provider, e.Symbol, e.Message, e.Code)
	}
	return fmt.Sprintf("provider %s: %s (%s)", e.Provider, e.Message, e.Code)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
