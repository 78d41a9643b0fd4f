package goAccounts

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-checkable identity of a failure.
type ErrorKind string

const (
	KindInvalidArgument     ErrorKind = "InvalidArgument"
	KindMissingIdentifier   ErrorKind = "MissingIdentifier"
	KindUsernameRequired    ErrorKind = "UsernameRequired"
	KindEmailRequired       ErrorKind = "EmailRequired"
	KindEmailTaken          ErrorKind = "EmailTaken"
	KindUsernameTaken       ErrorKind = "UsernameTaken"
	KindCredentialNotSet    ErrorKind = "CredentialNotSet"
	KindOldPasswordRequired ErrorKind = "OldPasswordRequired"
	KindNewPasswordRequired ErrorKind = "NewPasswordRequired"
	KindTypeMismatch        ErrorKind = "TypeMismatch"
	KindPasswordUnchanged   ErrorKind = "PasswordUnchanged"
	KindIncorrectPassword   ErrorKind = "IncorrectPassword"
	KindSelectorRequired    ErrorKind = "SelectorRequired"
	KindPasswordRequired    ErrorKind = "PasswordRequired"
	KindPasswordTooLong     ErrorKind = "PasswordTooLong"
	KindUserNotFound        ErrorKind = "UserNotFound"
	KindAccountIDRequired   ErrorKind = "AccountIdRequired"
	KindInvalidEmail        ErrorKind = "InvalidEmail"
	KindAccountNotFound     ErrorKind = "AccountNotFound"
	KindEmailNotFound       ErrorKind = "EmailNotFound"
	KindMinimumEmailCount   ErrorKind = "MinimumEmailCount"
	KindQueryRequired       ErrorKind = "QueryRequired"
	KindTokenInvalid        ErrorKind = "TokenInvalid"
	KindRateLimited         ErrorKind = "RateLimited"
	KindEngineNotReady      ErrorKind = "EngineNotReady"
)

// ErrorCategory groups kinds so callers can map failures to responses
// without matching on messages.
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryRateLimited    ErrorCategory = "rate_limited"
	CategoryInternal       ErrorCategory = "internal"
)

// Error is the typed failure returned by every Engine operation.
//
// Two errors are considered equal by errors.Is when their kinds match, so a
// re-messaged error (for example a TypeMismatch naming the offending field)
// still matches the exported sentinel.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Is reports kind equality with another *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Category returns the coarse class of the failure.
func (e *Error) Category() ErrorCategory {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindInvalidArgument, KindMissingIdentifier, KindUsernameRequired, KindEmailRequired,
		KindOldPasswordRequired, KindNewPasswordRequired, KindTypeMismatch, KindPasswordUnchanged,
		KindSelectorRequired, KindPasswordRequired, KindAccountIDRequired, KindInvalidEmail,
		KindMinimumEmailCount, KindQueryRequired, KindCredentialNotSet, KindPasswordTooLong:
		return CategoryValidation
	case KindUserNotFound, KindAccountNotFound, KindEmailNotFound:
		return CategoryNotFound
	case KindEmailTaken, KindUsernameTaken:
		return CategoryConflict
	case KindIncorrectPassword, KindTokenInvalid:
		return CategoryAuthentication
	case KindRateLimited:
		return CategoryRateLimited
	default:
		return CategoryInternal
	}
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// did not originate in this package (for example a store failure).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CategoryOf returns the category of the first *Error in err's chain, or ""
// for collaborator failures.
func CategoryOf(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category()
	}
	return ""
}

var (
	// ErrInvalidArgument is an exported constant or variable used by the account engine.
	ErrInvalidArgument = newError(KindInvalidArgument, "Expected an object.")
	// ErrMissingIdentifier is an exported constant or variable used by the account engine.
	ErrMissingIdentifier = newError(KindMissingIdentifier, "Username or email must be set.")
	// ErrUsernameRequired is an exported constant or variable used by the account engine.
	ErrUsernameRequired = newError(KindUsernameRequired, "Username is required.")
	// ErrEmailRequired is an exported constant or variable used by the account engine.
	ErrEmailRequired = newError(KindEmailRequired, "Email address is required.")
	// ErrEmailTaken is an exported constant or variable used by the account engine.
	ErrEmailTaken = newError(KindEmailTaken, "Email is already taken.")
	// ErrUsernameTaken is an exported constant or variable used by the account engine.
	ErrUsernameTaken = newError(KindUsernameTaken, "Username is already taken.")
	// ErrCredentialNotSet is an exported constant or variable used by the account engine.
	ErrCredentialNotSet = newError(KindCredentialNotSet, "Password not set.")
	// ErrOldPasswordRequired is an exported constant or variable used by the account engine.
	ErrOldPasswordRequired = newError(KindOldPasswordRequired, "oldPassword must be set.")
	// ErrNewPasswordRequired is an exported constant or variable used by the account engine.
	ErrNewPasswordRequired = newError(KindNewPasswordRequired, "newPassword must be set.")
	// ErrTypeMismatch is an exported constant or variable used by the account engine.
	ErrTypeMismatch = newError(KindTypeMismatch, "Password must be a string.")
	// ErrPasswordUnchanged is an exported constant or variable used by the account engine.
	ErrPasswordUnchanged = newError(KindPasswordUnchanged, "newPassword cannot be the same as oldPassword.")
	// ErrIncorrectPassword is an exported constant or variable used by the account engine.
	ErrIncorrectPassword = newError(KindIncorrectPassword, "Incorrect password.")
	// ErrSelectorRequired is an exported constant or variable used by the account engine.
	ErrSelectorRequired = newError(KindSelectorRequired, "User must be set.")
	// ErrPasswordRequired is an exported constant or variable used by the account engine.
	ErrPasswordRequired = newError(KindPasswordRequired, "Password must be set.")
	// ErrPasswordTooLong is returned when a new password exceeds the active
	// hasher's input limit (72 bytes for bcrypt, 1024 by default for argon2id).
	ErrPasswordTooLong = newError(KindPasswordTooLong, "Password is too long.")
	// ErrUserNotFound is an exported constant or variable used by the account engine.
	ErrUserNotFound = newError(KindUserNotFound, "User not found.")
	// ErrAccountIDRequired is an exported constant or variable used by the account engine.
	ErrAccountIDRequired = newError(KindAccountIDRequired, "Account id must be set.")
	// ErrInvalidEmail is an exported constant or variable used by the account engine.
	ErrInvalidEmail = newError(KindInvalidEmail, "Email address is invalid.")
	// ErrAccountNotFound is an exported constant or variable used by the account engine.
	ErrAccountNotFound = newError(KindAccountNotFound, "Account not found.")
	// ErrEmailNotFound is an exported constant or variable used by the account engine.
	ErrEmailNotFound = newError(KindEmailNotFound, "Email address is not registered on this account.")
	// ErrMinimumEmailCount is an exported constant or variable used by the account engine.
	ErrMinimumEmailCount = newError(KindMinimumEmailCount, "Account must keep at least one email address.")
	// ErrQueryRequired is an exported constant or variable used by the account engine.
	ErrQueryRequired = newError(KindQueryRequired, "Query must be set.")
	// ErrTokenInvalid is an exported constant or variable used by the account engine.
	ErrTokenInvalid = newError(KindTokenInvalid, "Invalid token.")
	// ErrRateLimited is an exported constant or variable used by the account engine.
	ErrRateLimited = newError(KindRateLimited, "Too many attempts, try again later.")
	// ErrEngineNotReady is an exported constant or variable used by the account engine.
	ErrEngineNotReady = newError(KindEngineNotReady, "engine not initialized")
)

// ErrDuplicateKey is matched by every *DuplicateKeyError a store returns.
var ErrDuplicateKey = errors.New("duplicate key")

// Fields reported by DuplicateKeyError.
const (
	FieldUsername     = "username"
	FieldEmailAddress = "emails.address"
)

// DuplicateKeyError is returned by AccountStore implementations when a write
// would violate a unique constraint.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("duplicate key on %s: %v", e.Field, e.Err)
	}
	return "duplicate key on " + e.Field
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// Is makes every DuplicateKeyError match ErrDuplicateKey.
func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// duplicateToConflict maps an authoritative store constraint violation onto
// the matching conflict kind. Other errors are returned unchanged.
func duplicateToConflict(err error) error {
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		return err
	}
	switch dup.Field {
	case FieldUsername:
		return ErrUsernameTaken
	case FieldEmailAddress:
		return ErrEmailTaken
	default:
		return err
	}
}
