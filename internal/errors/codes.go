// Package errors provides structured error handling for Mosaic.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors (indexes, content store, cache)
//   - 3XX: Network errors (embedding gateway, remote cache)
//   - 4XX: Validation errors
//   - 5XX: Retrieval errors
//   - 6XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates index, content store, and cache errors.
	CategoryStore Category = "STORE"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryRetrieval indicates retrieval pipeline errors.
	CategoryRetrieval Category = "RETRIEVAL"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeIndexCorrupt     = "ERR_201_INDEX_CORRUPT"
	ErrCodeContentStore     = "ERR_202_CONTENT_STORE"
	ErrCodeCacheUnavailable = "ERR_203_CACHE_UNAVAILABLE"

	// Network errors (300-399)
	ErrCodeNetworkTimeout       = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeEmbeddingUnavailable = "ERR_302_EMBEDDING_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidQuery      = "ERR_401_INVALID_QUERY"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeQueryTooLong      = "ERR_403_QUERY_TOO_LONG"
	ErrCodeInvalidModality   = "ERR_404_INVALID_MODALITY"
	ErrCodeLimitOutOfRange   = "ERR_405_LIMIT_OUT_OF_RANGE"
	ErrCodeDimensionMismatch = "ERR_406_DIMENSION_MISMATCH"

	// Retrieval errors (500-599)
	ErrCodeIndexUnavailable     = "ERR_501_INDEX_UNAVAILABLE"
	ErrCodeRetrievalUnavailable = "ERR_502_RETRIEVAL_UNAVAILABLE"
	ErrCodeContentNotFound      = "ERR_503_CONTENT_NOT_FOUND"

	// Internal errors (600-699)
	ErrCodeInternal = "ERR_601_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "401" from "ERR_401_INVALID_QUERY")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	case '5':
		return CategoryRetrieval
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors abort the whole request: no query vector means no
	// retrieval, and no surviving modality means nothing to bundle.
	switch code {
	case ErrCodeEmbeddingUnavailable, ErrCodeRetrievalUnavailable, ErrCodeIndexCorrupt:
		return SeverityFatal
	}

	// Locally recovered failures get warning severity
	if isRecoverableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeEmbeddingUnavailable, ErrCodeCacheUnavailable:
		return true
	default:
		return false
	}
}

// isRecoverableCode checks if an error code is recovered locally by the
// pipeline (dropped candidate, empty modality) rather than surfaced.
func isRecoverableCode(code string) bool {
	switch code {
	case ErrCodeIndexUnavailable, ErrCodeContentNotFound, ErrCodeCacheUnavailable, ErrCodeNetworkTimeout:
		return true
	default:
		return false
	}
}
