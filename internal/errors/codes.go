// Package errors provides structured error handling for SmartDoc.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index errors (store, writer, reader)
//   - 3XX: Collaborator errors (embedding, semantic, reranker, generator, queue)
//   - 4XX: Validation and query errors
//   - 5XX: Ingestion and storage errors
//   - 6XX: Internal errors
package errors

// Category classifies errors by subsystem.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIndex indicates text index store errors.
	CategoryIndex Category = "INDEX"
	// CategoryCollaborator indicates remote collaborator errors.
	CategoryCollaborator Category = "COLLABORATOR"
	// CategoryValidation indicates input validation and query errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryIngest indicates ingestion and document store errors.
	CategoryIngest Category = "INGEST"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error; the process must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Index errors (200-299)
	ErrCodeIndexUnavailable = "ERR_201_INDEX_UNAVAILABLE"
	ErrCodeIndexLocked      = "ERR_202_INDEX_LOCKED"
	ErrCodeIndexCorrupt     = "ERR_203_INDEX_CORRUPT"
	ErrCodeIndexWrite       = "ERR_204_INDEX_WRITE"
	ErrCodeIndexFlush       = "ERR_205_INDEX_FLUSH"

	// Collaborator errors (300-399)
	ErrCodeCollaboratorUnavailable = "ERR_301_COLLABORATOR_UNAVAILABLE"
	ErrCodeCollaboratorTimeout     = "ERR_302_COLLABORATOR_TIMEOUT"
	ErrCodeQueueUnavailable        = "ERR_303_QUEUE_UNAVAILABLE"

	// Validation and query errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeQueryConstruction = "ERR_402_QUERY_CONSTRUCTION"
	ErrCodeUnsupportedType   = "ERR_403_UNSUPPORTED_TYPE"
	ErrCodeCorruptDocument   = "ERR_404_CORRUPT_DOCUMENT"

	// Ingestion and storage errors (500-599)
	ErrCodeDuplicateContent   = "ERR_501_DUPLICATE_CONTENT"
	ErrCodeDocumentStore      = "ERR_502_DOCUMENT_STORE"
	ErrCodeMaterializationGap = "ERR_503_MATERIALIZATION_GAP"

	// Internal errors (600-699)
	ErrCodeInternal = "ERR_601_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIndex
	case '3':
		return CategoryCollaborator
	case '4':
		return CategoryValidation
	case '5':
		return CategoryIngest
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexUnavailable, ErrCodeIndexLocked, ErrCodeIndexCorrupt:
		// The index store is the one dependency search cannot degrade around.
		return SeverityFatal
	case ErrCodeCollaboratorUnavailable, ErrCodeCollaboratorTimeout,
		ErrCodeQueueUnavailable, ErrCodeQueryConstruction,
		ErrCodeMaterializationGap, ErrCodeDuplicateContent:
		// These are all recovered locally by the owning stage.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether an error code represents a retryable failure.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeCollaboratorUnavailable, ErrCodeCollaboratorTimeout, ErrCodeQueueUnavailable:
		return true
	default:
		return false
	}
}
