// Package coreerr defines the error taxonomy shared across every
// conversational-core component, so callers can branch on error class with
// errors.Is instead of parsing messages.
package coreerr

import (
	"errors"
	"fmt"
)

// Sentinel error classes. Wrap these with fmt.Errorf("...: %w", Class) so
// errors.Is(err, coreerr.ValidationFailure) keeps working through layers.
var (
	// ValidationFailure indicates an extracted entity failed a business rule.
	ValidationFailure = errors.New("validation failure")
	// LLMError indicates the underlying LLM call failed or timed out.
	LLMError = errors.New("llm error")
	// RetrievalError indicates the policy corpus retrieval pipeline failed.
	RetrievalError = errors.New("retrieval error")
	// RepositoryError indicates a storage-layer operation failed.
	RepositoryError = errors.New("repository error")
	// IntentSwitchConflict indicates a new-intent signal arrived while a
	// slot-filling flow was active and the two could not be reconciled
	// automatically.
	IntentSwitchConflict = errors.New("intent switch conflict")
	// StateCorruption indicates the dialog state machine observed an
	// illegal transition or an inconsistent stored state.
	StateCorruption = errors.New("dialog state corruption")
)

// Wrap annotates err with a message while preserving errors.Is matching
// against class.
func Wrap(class error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), class)
}

// Is reports whether err is (or wraps) one of the sentinel classes above.
func Is(err, class error) bool {
	return errors.Is(err, class)
}
