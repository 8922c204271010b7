package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeInvalidLink         = "INVALID_LINK"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts     = "TOO_MANY_ATTEMPTS"
	TextCodeAccountInactive     = "ACCOUNT_INACTIVE"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeUsernameTaken       = "USERNAME_TAKEN"
	TextCodeProfileKindMismatch = "PROFILE_KIND_MISMATCH"
	TextCodeNotificationFailed  = "NOTIFICATION_FAILED"
	TextCodeSessionNotFound     = "SESSION_NOT_FOUND"
	TextCodeSessionInvalid      = "SESSION_INVALID"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
)

// ErrInvalidLink covers every broken activation or confirmation link.
// Callers never learn whether the reference, the account or the token failed.
var ErrInvalidLink = errors.New("the link is invalid", errors.CategoryNotFound).
	WithTextCode(TextCodeInvalidLink).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned for any failed credential check
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while the login cool down is in effect
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(errors.CodeUnauthorized)

// ErrAccountInactive is returned when valid credentials belong to an inactive account
var ErrAccountInactive = errors.New("this account is inactive", errors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the actor lacks superuser rights
var ErrForbidden = errors.New("you are not allowed to perform this action", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = errors.New("password can not be an empty string", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrEmailTaken is returned when another account already uses the email
var ErrEmailTaken = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrProfileKindMismatch is returned when an individual update targets an
// organization profile or the other way around
var ErrProfileKindMismatch = errors.New("profile kind does not match the update", errors.CategoryBadInput).
	WithTextCode(TextCodeProfileKindMismatch).
	WithCode(errors.CodeBadRequest)

// ErrUnableToFindSession the request carries no session cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrSessionInvalid the session no longer matches the account
var ErrSessionInvalid = errors.New("session is no longer valid", errors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired the session cookie is past its expiration
var ErrTokenExpired = errors.New("session has expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed the session cookie could not be verified
var ErrTokenMalformed = errors.New("session token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// FieldErrors maps form fields to their error messages
type FieldErrors map[string]string

// NewFieldError builds a validation error that the controllers render
// next to the given form field
func NewFieldError(field, message, textCode string) *errors.Error {
	return errors.New(message, errors.CategoryValidation).
		WithTextCode(textCode).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{
			"field": field,
		})
}

// AsFieldErrors extracts per field messages from a validation error.
// The second value is false when err carries no field information.
func AsFieldErrors(err error) (FieldErrors, bool) {
	if fields := FormatValidationErrorToMap(err); len(fields) > 0 {
		return fields, true
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr.Category != errors.CategoryValidation {
		return nil, false
	}

	if len(richErr.ValidationErrors) > 0 {
		return FieldErrors(richErr.ValidationMap()), true
	}

	field, ok := richErr.Metadata["field"].(string)
	if !ok || field == "" {
		return nil, false
	}

	return FieldErrors{field: richErr.Message}, true
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map. Non validation errors yield an empty map.
func FormatValidationErrorToMap(err error) FieldErrors {
	out := FieldErrors{}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return out
	}

	for field, ferr := range verrs {
		if ferr != nil {
			out[field] = ferr.Error()
		}
	}

	return out
}

func isNotFound(err error) bool {
	return errors.IsNotFound(err) || repository.IsRecordNotFound(err)
}
