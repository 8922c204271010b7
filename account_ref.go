package accounts

import (
	"encoding/base64"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// EncodeAccountRef turns an account id into the url safe reference used in links
func EncodeAccountRef(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// DecodeAccountRef reverses EncodeAccountRef
func DecodeAccountRef(ref string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ref)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryBadInput, "malformed account reference")
	}

	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryBadInput, "malformed account reference")
	}

	if id == uuid.Nil {
		return uuid.Nil, errors.New("empty account reference", errors.CategoryBadInput)
	}

	return id, nil
}

// ActivationPath is the link path for individual account activation
func ActivationPath(kind AccountKind, account *Account, token string) string {
	prefix := "/accounts/activate/"
	if kind == KindOrganization {
		prefix = "/accounts/organization/activate/"
	}
	return prefix + EncodeAccountRef(account.ID) + "/" + token
}

// ConfirmEmailPath is the link path for email reconfirmation
func ConfirmEmailPath(account *Account) string {
	return "/accounts/confirm-email/" + EncodeAccountRef(account.ID)
}

// ReviewPath is the administrator approval page for an organization profile
func ReviewPath(profile *Profile) string {
	if profile == nil {
		return "/accounts/ngo-approval/"
	}
	return "/accounts/ngo-approval/" + profile.ID.String()
}
