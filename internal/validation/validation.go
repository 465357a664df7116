// Package validation provides input validation for the Cryptoshield API.
//
// All boundary checks live here so malformed addresses, amounts, and chain
// identifiers are rejected before they reach the scorer or the RPC client.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// ss58AddressRegex loosely validates SS58 account addresses: base58 alphabet
// (no 0, O, I, l), typical encoded length 46-50 characters.
var ss58AddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{46,50}$`)

// baseUnitAmountRegex validates base-unit amounts: a plain decimal integer
// string. Values routinely exceed int64 range, so no numeric parse here.
var baseUnitAmountRegex = regexp.MustCompile(`^[0-9]{1,78}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidAddress checks if a string looks like an SS58 account address.
func IsValidAddress(addr string) bool {
	return ss58AddressRegex.MatchString(addr)
}

// IsValidAmount checks if a string is a plain base-unit integer amount.
func IsValidAmount(amount string) bool {
	return baseUnitAmountRegex.MatchString(amount)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidAddress checks if a field is a plausible SS58 address
func ValidAddress(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidAddress(value) {
			return &ValidationError{Field: field, Message: "must be a valid SS58 address"}
		}
		return nil
	}
}

// ValidAmount checks if a field is a base-unit integer amount
func ValidAmount(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if !IsValidAmount(value) {
			return &ValidationError{Field: field, Message: "must be a base-unit integer string"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}
