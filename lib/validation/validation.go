// Package validation provides reusable input validation functions for wgadmin.
// All validators follow a consistent pattern: they return nil on success and a descriptive
// error on failure. Errors are safe to return to clients and match
// errors.ErrInvalidInput, so the transport maps them to 400.
package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-i2p/wgadmin/lib/addr"
	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// Common validation errors. These are sentinel errors that can be checked with errors.Is().
var (
	// ErrRequired indicates a required field is missing or empty.
	ErrRequired = fmt.Errorf("%w: field is required", apperrors.ErrInvalidInput)

	// ErrTooLong indicates a string exceeds the maximum length.
	ErrTooLong = fmt.Errorf("%w: value exceeds maximum length", apperrors.ErrInvalidInput)

	// ErrInvalidFormat indicates a value doesn't match the expected format.
	ErrInvalidFormat = fmt.Errorf("%w: invalid format", apperrors.ErrInvalidInput)

	// ErrOutOfRange indicates a numeric value is outside the allowed range.
	ErrOutOfRange = fmt.Errorf("%w: value out of range", apperrors.ErrInvalidInput)

	// ErrInvalidDuration indicates an invalid duration string.
	ErrInvalidDuration = fmt.Errorf("%w: invalid duration", apperrors.ErrInvalidInput)
)

// Constraints for common field types.
const (
	// MaxInterfaceNameLength is IFNAMSIZ minus the terminating NUL.
	MaxInterfaceNameLength = 15

	// MaxPeerNameLength is the maximum length for peer names.
	MaxPeerNameLength = 64

	// MaxHookLength is the maximum length for PostUp/PostDown overrides.
	MaxHookLength = 1024

	// MaxHostLength is the maximum length of a DNS name.
	MaxHostLength = 253
)

// interfaceNamePattern matches names wg-quick accepts for an interface.
var interfaceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_=+.-]{1,15}$`)

// peerNamePattern rejects control characters and path separators, since
// peer names become download filenames.
var peerNamePattern = regexp.MustCompile(`^[^\x00-\x1f\x7f/\\]+$`)

// hostLabelPattern matches one DNS label: letters, digits and inner hyphens.
var hostLabelPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// Result represents a validation result with field context.
type Result struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (r *Result) Error() string {
	if r.Field != "" {
		return fmt.Sprintf("%s: %s", r.Field, r.Message)
	}
	return r.Message
}

// Unwrap returns the underlying error for errors.Is() support.
func (r *Result) Unwrap() error {
	return r.Err
}

// NewResult creates a validation result.
func NewResult(field, message string, err error) *Result {
	return &Result{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// Required validates that a string is non-empty.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewResult(field, "is required", ErrRequired)
	}
	return nil
}

// MaxLength validates that a string doesn't exceed the maximum length.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return NewResult(field, fmt.Sprintf("exceeds maximum length of %d characters", max), ErrTooLong)
	}
	return nil
}

// IntRange validates that an integer is within the given range (inclusive).
func IntRange(field string, value, min, max int) error {
	if value < min || value > max {
		return NewResult(field, fmt.Sprintf("must be between %d and %d", min, max), ErrOutOfRange)
	}
	return nil
}

// NonNegative validates that an integer is non-negative (>= 0).
func NonNegative(field string, value int) error {
	if value < 0 {
		return NewResult(field, "must be non-negative", ErrOutOfRange)
	}
	return nil
}

// DurationRange validates an already parsed duration. Zero is accepted
// and means "use the default".
func DurationRange(field string, d, min, max time.Duration) error {
	if d < 0 {
		return NewResult(field, "duration cannot be negative", ErrInvalidDuration)
	}
	if d != 0 && (d < min || d > max) {
		return NewResult(field, fmt.Sprintf("must be between %s and %s", min, max), ErrOutOfRange)
	}
	return nil
}

// InterfaceName validates a server name, which doubles as the kernel
// interface name and the config file stem.
func InterfaceName(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if err := MaxLength(field, value, MaxInterfaceNameLength); err != nil {
		return err
	}
	if !interfaceNamePattern.MatchString(value) || value == "." || value == ".." {
		return NewResult(field, "may contain only letters, digits and _=+.-", ErrInvalidFormat)
	}
	return nil
}

// PeerName validates a peer display name.
func PeerName(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if err := MaxLength(field, value, MaxPeerNameLength); err != nil {
		return err
	}
	if !peerNamePattern.MatchString(value) {
		return NewResult(field, "must not contain control characters or slashes", ErrInvalidFormat)
	}
	return nil
}

// Port validates a network port number.
func Port(field string, value int) error {
	if value < 1 || value > 65535 {
		return NewResult(field, "must be between 1 and 65535", ErrOutOfRange)
	}
	return nil
}

// AddressPattern validates an address pattern such as 10.0.0.x.
func AddressPattern(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if _, err := addr.ParsePattern(value); err != nil {
		return NewResult(field, "must be an IPv4 address with 1 to 3 trailing 'x' octets (e.g., 10.0.0.x)", ErrInvalidFormat)
	}
	return nil
}

// Key validates a base64 WireGuard key.
func Key(field, value string) error {
	if err := Required(field, value); err != nil {
		return err
	}
	if _, err := wgtypes.ParseKey(value); err != nil {
		return NewResult(field, "must be a base64-encoded 32-byte key", ErrInvalidFormat)
	}
	return nil
}

// Host validates an optional endpoint host: an IP address or DNS name,
// without a port.
func Host(field, value string) error {
	if value == "" {
		return nil
	}
	if err := MaxLength(field, value, MaxHostLength); err != nil {
		return err
	}
	if net.ParseIP(value) != nil {
		return nil
	}
	for _, label := range strings.Split(strings.TrimSuffix(value, "."), ".") {
		if !hostLabelPattern.MatchString(label) {
			return NewResult(field, "must be a hostname or IP address without a port", ErrInvalidFormat)
		}
	}
	return nil
}

// Hook validates an optional PostUp/PostDown command.
func Hook(field, value string) error {
	if value == "" {
		return nil
	}
	if strings.ContainsAny(value, "\r\n") {
		return NewResult(field, "must be a single line", ErrInvalidFormat)
	}
	return MaxLength(field, value, MaxHookLength)
}

// All runs multiple validation functions and returns the first error.
func All(validators ...func() error) error {
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

// Errors collects multiple validation errors.
type Errors []error

// Add appends an error to the collection (nil errors are ignored).
func (e *Errors) Add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

// HasErrors returns true if any errors were collected.
func (e Errors) HasErrors() bool {
	return len(e) > 0
}

// Error returns all errors as a single error message.
func (e Errors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	b.WriteString("multiple validation errors: ")
	for i, err := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// First returns the first error, or nil if none.
func (e Errors) First() error {
	if len(e) == 0 {
		return nil
	}
	return e[0]
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e Errors) Unwrap() []error {
	return e
}
