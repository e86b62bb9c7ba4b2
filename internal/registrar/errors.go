package registrar

import (
	"errors"
	"fmt"
	"strings"

	"snapseal/internal/asset"
)

var (
	// ErrInsufficientCredits marks a registration rejected because the
	// account balance cannot cover it. The queue pauses on this error
	// instead of failing subsequent assets.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrUnauthorized marks a rejected or missing auth token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransient marks network and server failures worth retrying.
	ErrTransient = errors.New("transient registration failure")

	// ErrRejected marks a permanent rejection of this particular asset.
	ErrRejected = errors.New("registration rejected")
)

// Wrap builds an error message with operation context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorType maps a registration error to the classification tag recorded on
// the failed asset.
func ErrorType(err error) string {
	if errors.Is(err, ErrInsufficientCredits) {
		return asset.ErrorTypeInsufficientCredits
	}
	return asset.ErrorTypeUploadFailed
}

// IsInsufficientCredits reports whether the error, its structured code, or
// its message indicates an exhausted balance. Registry deployments are not
// consistent about the code they return, so the message text is checked too.
func IsInsufficientCredits(code, message string) bool {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "insufficient_credits", "insufficient_funds", "insufficient_balance":
		return true
	}
	lowered := strings.ToLower(message)
	if !strings.Contains(lowered, "insufficient") {
		return false
	}
	for _, hint := range []string{"fund", "balance", "credit"} {
		if strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "registration failure"
	}
	return strings.Join(parts, ": ")
}
