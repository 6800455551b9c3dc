// Package errors provides structured error handling for snipsearch.
//
// Codes read ERR_<number>_<NAME>. The leading digit of the number selects the
// category: 1 config, 3 transport, 4 validation, 5 internal.
package errors

// Category classifies a SnipError.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryTransport  Category = "TRANSPORT"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity tells callers whether they can continue after an error.
type Severity string

const (
	// SeverityFatal aborts the command.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails the current operation only.
	SeverityError Severity = "ERROR"
	// SeverityWarning marks a transient failure.
	SeverityWarning Severity = "WARNING"
)

const (
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	ErrCodeIndexUnavailable  = "ERR_301_INDEX_UNAVAILABLE"
	ErrCodeIndexRejected     = "ERR_302_INDEX_REJECTED"
	ErrCodeMalformedResponse = "ERR_303_MALFORMED_RESPONSE"
	ErrCodeRefreshFailed     = "ERR_304_REFRESH_FAILED"

	ErrCodeInvalidInput       = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidIndexKind   = "ERR_402_INVALID_INDEX_KIND"
	ErrCodeQueryEmpty         = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidStoragePath = "ERR_406_INVALID_STORAGE_PATH"

	ErrCodeInternal     = "ERR_500_INTERNAL"
	ErrCodeLookupFailed = "ERR_501_LOOKUP_FAILED"
	ErrCodeRatingFailed = "ERR_502_RATING_FAILED"
	ErrCodeStoreFailed  = "ERR_503_STORE_FAILED"
)

// classification is what New derives from a code.
type classification struct {
	category  Category
	severity  Severity
	retryable bool
}

// Codes not listed here are classified by their leading digit with
// SeverityError and no retry. The reconciler never retries; only the
// refresh trigger consults retryable.
var classifications = map[string]classification{
	ErrCodeConfigInvalid:    {CategoryConfig, SeverityFatal, false},
	ErrCodeIndexUnavailable: {CategoryTransport, SeverityWarning, true},
	ErrCodeRefreshFailed:    {CategoryTransport, SeverityWarning, true},
}

func classify(code string) classification {
	if c, ok := classifications[code]; ok {
		return c
	}
	return classification{category: categoryFromCode(code), severity: SeverityError}
}

func categoryFromCode(code string) Category {
	// "ERR_3..." -> transport
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '3':
		return CategoryTransport
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}
