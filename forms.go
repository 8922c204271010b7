package accounts

import (
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used for numbers submitted without a country prefix
var DefaultPhoneRegion = "IN"

// MinPasswordLength is the shortest password accepted
var MinPasswordLength = 8

// SignupPayload is submitted by both signup forms
type SignupPayload struct {
	Username  string `form:"username" json:"username"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password1" json:"password1"`
	Password2 string `form:"password2" json:"password2"`
}

// Validate will run validation rules
func (p SignupPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username,
			validation.Required,
			validation.Length(1, 150),
			validation.By(validUsername),
		),
		validation.Field(&p.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&p.Password,
			validation.Required,
			validation.By(PasswordRule(p.Username, p.Email)),
		),
		validation.Field(&p.Password2,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// AddressFields is shared by every profile form
type AddressFields struct {
	Phone     string `form:"phone" json:"phone"`
	Address   string `form:"address" json:"address"`
	City      string `form:"city" json:"city"`
	CountryID int64  `form:"country_id" json:"country_id"`
	StateID   int64  `form:"state_id" json:"state_id"`
}

func (a AddressFields) rules(target *AddressFields) []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&target.Phone, validation.By(validPhone)),
		validation.Field(&target.Address, validation.Length(0, 255)),
		validation.Field(&target.City, validation.Length(0, 100)),
		validation.Field(&target.StateID, validation.When(a.StateID != 0, validation.By(requireCountry(a.CountryID)))),
	}
}

func (a AddressFields) apply(p *Profile) {
	p.Phone = NormalizePhone(a.Phone)
	p.Address = strings.TrimSpace(a.Address)
	p.City = strings.TrimSpace(a.City)
	p.CountryID = optionalID(a.CountryID)
	p.StateID = optionalID(a.StateID)
}

// AddressOf pre fills address fields from a profile
func AddressOf(p *Profile) AddressFields {
	if p == nil {
		return AddressFields{}
	}
	out := AddressFields{
		Phone:   p.Phone,
		Address: p.Address,
		City:    p.City,
	}
	if p.CountryID != nil {
		out.CountryID = *p.CountryID
	}
	if p.StateID != nil {
		out.StateID = *p.StateID
	}
	return out
}

// Completion is the data submitted on the activation form
type Completion interface {
	Validate() error
	Kind() AccountKind
	apply(a *Account, p *Profile)
}

// IndividualCompletion completes a donor or volunteer registration
type IndividualCompletion struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	AddressFields
}

func (c IndividualCompletion) Kind() AccountKind { return KindIndividual }

// Validate will run validation rules
func (c IndividualCompletion) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&c.FirstName, validation.Required, validation.Length(1, 150)),
		validation.Field(&c.LastName, validation.Required, validation.Length(1, 150)),
	}
	rules = append(rules, c.AddressFields.rules(&c.AddressFields)...)
	return validation.ValidateStruct(&c, rules...)
}

func (c IndividualCompletion) apply(a *Account, p *Profile) {
	a.FirstName = strings.TrimSpace(c.FirstName)
	a.LastName = strings.TrimSpace(c.LastName)
	c.AddressFields.apply(p)
}

// OrganizationCompletion completes an NGO registration
type OrganizationCompletion struct {
	OrganizationName string `form:"organization_name" json:"organization_name"`
	Description      string `form:"description" json:"description"`
	Website          string `form:"website" json:"website"`
	AddressFields
}

func (c OrganizationCompletion) Kind() AccountKind { return KindOrganization }

// Validate will run validation rules
func (c OrganizationCompletion) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&c.OrganizationName, validation.Required, validation.Length(1, 255)),
		validation.Field(&c.Description, validation.Length(0, 5000)),
		validation.Field(&c.Website, validation.Length(0, 255), is.URL),
	}
	rules = append(rules, c.AddressFields.rules(&c.AddressFields)...)
	return validation.ValidateStruct(&c, rules...)
}

func (c OrganizationCompletion) apply(a *Account, p *Profile) {
	p.OrganizationName = strings.TrimSpace(c.OrganizationName)
	p.Description = strings.TrimSpace(c.Description)
	p.Website = strings.TrimSpace(c.Website)
	c.AddressFields.apply(p)
}

// ProfileUpdate is the data submitted on a profile edit form
type ProfileUpdate interface {
	Validate() error
	Kind() AccountKind
	SubmittedEmail() string
	apply(a *Account, p *Profile)
}

// UserProfileUpdate edits an individual profile
type UserProfileUpdate struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	AddressFields
}

func (u UserProfileUpdate) Kind() AccountKind { return KindIndividual }

func (u UserProfileUpdate) SubmittedEmail() string { return strings.TrimSpace(u.Email) }

// Validate will run validation rules
func (u UserProfileUpdate) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&u.FirstName, validation.Required, validation.Length(1, 150)),
		validation.Field(&u.LastName, validation.Required, validation.Length(1, 150)),
		validation.Field(&u.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
	}
	rules = append(rules, u.AddressFields.rules(&u.AddressFields)...)
	return validation.ValidateStruct(&u, rules...)
}

func (u UserProfileUpdate) apply(a *Account, p *Profile) {
	a.FirstName = strings.TrimSpace(u.FirstName)
	a.LastName = strings.TrimSpace(u.LastName)
	u.AddressFields.apply(p)
}

// OrganizationProfileUpdate edits an NGO profile
type OrganizationProfileUpdate struct {
	Email            string `form:"email" json:"email"`
	OrganizationName string `form:"organization_name" json:"organization_name"`
	Description      string `form:"description" json:"description"`
	Website          string `form:"website" json:"website"`
	AddressFields
}

func (u OrganizationProfileUpdate) Kind() AccountKind { return KindOrganization }

func (u OrganizationProfileUpdate) SubmittedEmail() string { return strings.TrimSpace(u.Email) }

// Validate will run validation rules
func (u OrganizationProfileUpdate) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&u.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&u.OrganizationName, validation.Required, validation.Length(1, 255)),
		validation.Field(&u.Description, validation.Length(0, 5000)),
		validation.Field(&u.Website, validation.Length(0, 255), is.URL),
	}
	rules = append(rules, u.AddressFields.rules(&u.AddressFields)...)
	return validation.ValidateStruct(&u, rules...)
}

func (u OrganizationProfileUpdate) apply(a *Account, p *Profile) {
	p.OrganizationName = strings.TrimSpace(u.OrganizationName)
	p.Description = strings.TrimSpace(u.Description)
	p.Website = strings.TrimSpace(u.Website)
	u.AddressFields.apply(p)
}

// PasswordChangePayload is the change password form
type PasswordChangePayload struct {
	OldPassword  string `form:"old_password" json:"old_password"`
	NewPassword  string `form:"new_password1" json:"new_password1"`
	NewPassword2 string `form:"new_password2" json:"new_password2"`
}

func (p PasswordChangePayload) validate(a *Account) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.OldPassword, validation.Required),
		validation.Field(&p.NewPassword,
			validation.Required,
			validation.By(PasswordRule(a.Username, a.Email)),
		),
		validation.Field(&p.NewPassword2,
			validation.Required,
			validation.By(ValidateStringEquals(p.NewPassword)),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("the two password fields didn't match")
		}
		return nil
	}
}

// PasswordRule checks length, digits only, similarity to the account
// attributes and the common password list
func PasswordRule(attributes ...string) validation.RuleFunc {
	return func(value any) error {
		password, _ := value.(string)
		if password == "" {
			return nil
		}

		if len([]rune(password)) < MinPasswordLength {
			return validation.NewError("password_too_short", "this password is too short, it must contain at least 8 characters")
		}

		if isNumeric(password) {
			return validation.NewError("password_entirely_numeric", "this password is entirely numeric")
		}

		for _, attr := range attributes {
			if tooSimilar(password, attr) {
				return validation.NewError("password_too_similar", "the password is too similar to your account details")
			}
		}

		if _, ok := commonPasswords[strings.ToLower(password)]; ok {
			return validation.NewError("password_too_common", "this password is too common")
		}

		return nil
	}
}

// NormalizePhone formats a valid number as E.164, other input is returned trimmed
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func validPhone(value any) error {
	raw, _ := value.(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return validation.NewError("invalid_phone", "enter a valid phone number")
	}
	return nil
}

func validUsername(value any) error {
	s, _ := value.(string)
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return validation.NewError("invalid_username", "usernames may contain only letters, numbers and @/./+/-/_ characters")
	}
	return nil
}

func requireCountry(countryID int64) validation.RuleFunc {
	return func(value any) error {
		if countryID == 0 {
			return validation.NewError("state_without_country", "select a country first")
		}
		return nil
	}
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// tooSimilar compares the password against an account attribute and its
// parts. Ratio is the longest common substring share of both lengths.
func tooSimilar(password, attribute string) bool {
	attribute = strings.ToLower(strings.TrimSpace(attribute))
	if attribute == "" {
		return false
	}
	password = strings.ToLower(password)

	parts := []string{attribute}
	parts = append(parts, strings.FieldsFunc(attribute, func(r rune) bool {
		return strings.ContainsRune("@.+-_", r)
	})...)

	for _, part := range parts {
		if len(part) < 3 {
			continue
		}
		common := longestCommonSubstring(password, part)
		if float64(2*common)/float64(len(password)+len(part)) >= 0.7 {
			return true
		}
	}
	return false
}

func longestCommonSubstring(a, b string) int {
	best := 0
	prev := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			}
		}
		prev = cur
	}
	return best
}

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"password", "password1", "password123", "passw0rd", "12345678", "123456789",
		"1234567890", "qwertyuiop", "qwerty123", "iloveyou", "sunshine", "princess",
		"football", "baseball", "welcome1", "welcome123", "abc12345", "abcd1234",
		"letmein1", "trustno1", "superman", "starwars", "dragon12", "monkey12",
		"master12", "whatever", "computer", "internet", "zaq12wsx", "1q2w3e4r",
		"1qaz2wsx", "qwertyui", "asdfghjk", "michelle", "jennifer", "11111111",
		"00000000", "88888888", "changeme", "administrator", "admin123", "secret123",
		"india123", "cricket1", "janani123", "donation",
	} {
		commonPasswords[p] = struct{}{}
	}
}
