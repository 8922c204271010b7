package accounts

import (
	"fmt"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

const (
	MessageInvalidActivationLink = "Activation link is invalid!"
	MessageInvalidEmailLink      = "Email activation link is invalid!"
	MessageCorrectErrors         = "Please correct the error below."
	MessageProfileUpdated        = "Your profile was successfully updated!"
	MessageEmailConfirmed        = "Your new email was successfully confirmed!"
	MessagePasswordUpdated       = "Your password was successfully updated!"
	MessageOrganizationApproved  = "Profile was approved. NGO will receive an email with this information."
	MessageOrganizationRejected  = "Profile was rejected. NGO will receive an email with this information."
	MessageInvalidLogin          = "Please enter a correct username and password. Note that both fields may be case-sensitive."
	MessageInactiveLogin         = "This account is inactive."
	MessageLoginThrottled        = "Too many login attempts. Please try again later."
)

// EmailChangeNotice is shown after a profile update staged a new address
func EmailChangeNotice(pending, current string) string {
	return fmt.Sprintf(
		"You have requested an email change to %s! We have just sent you a message to %s with a confirmation link inside. "+
			"You have to click the link in the message to confirm your new email address. "+
			"If you don't click the link, %s will continue to be your only active email address. "+
			"If for some reason the message doesn't arrive, try to change the email again or contact administration.",
		pending, pending, current,
	)
}

// Flasher stores messages for the page rendered after a redirect
type Flasher interface {
	WithSuccess(ctx router.Context, data router.ViewContext) router.Context
	WithError(ctx router.Context, data router.ViewContext) router.Context
}

type routerFlash struct{}

func (routerFlash) WithSuccess(ctx router.Context, data router.ViewContext) router.Context {
	return flash.WithSuccess(ctx, data)
}

func (routerFlash) WithError(ctx router.Context, data router.ViewContext) router.Context {
	return flash.WithError(ctx, data)
}

// RegisterAccountRoutes mounts every account page on app
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountsControllerOption) *AccountsController {
	controller := NewAccountsController(opts...)

	optional := controller.Auther.OptionalSession()
	protected := controller.Auther.ProtectedRoute()
	superuser := controller.Auther.RequireSuperuser()

	app.Get(controller.Routes.Login, controller.LoginShow, optional).SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost, optional).SetName("sign-in.post")
	app.Get(controller.Routes.Logout, controller.LogOut, optional).SetName("sign-out.get")

	app.Get(controller.Routes.Signup, controller.SignupShow, optional).SetName("signup.get")
	app.Post(controller.Routes.Signup, controller.SignupPost, optional).SetName("signup.post")
	app.Get(controller.Routes.OrganizationSignup, controller.OrganizationSignupShow, optional).
		SetName("organization-signup.get")
	app.Post(controller.Routes.OrganizationSignup, controller.OrganizationSignupPost, optional).
		SetName("organization-signup.post")

	app.Get(controller.Routes.Activate, controller.Activate).SetName("activate.get")
	app.Post(controller.Routes.Activate, controller.Activate).SetName("activate.post")
	app.Get(controller.Routes.OrganizationActivate, controller.ActivateOrganization).
		SetName("organization-activate.get")
	app.Post(controller.Routes.OrganizationActivate, controller.ActivateOrganization).
		SetName("organization-activate.post")

	app.Get(controller.Routes.Profile, controller.ProfileShow, protected).SetName("profile.get")
	app.Get(controller.Routes.ProfileUpdate, controller.ProfileUpdateShow, protected).SetName("profile-update.get")
	app.Post(controller.Routes.ProfileUpdate, controller.ProfileUpdatePost, protected).SetName("profile-update.post")
	app.Get(controller.Routes.OrganizationUpdate, controller.OrganizationUpdateShow, protected).
		SetName("ngo-profile-update.get")
	app.Post(controller.Routes.OrganizationUpdate, controller.OrganizationUpdatePost, protected).
		SetName("ngo-profile-update.post")

	app.Get(controller.Routes.ConfirmEmail, controller.ConfirmEmail, optional).SetName("confirm-email.get")

	app.Get(controller.Routes.ChangePassword, controller.ChangePasswordShow, protected).SetName("change-password.get")
	app.Post(controller.Routes.ChangePassword, controller.ChangePasswordPost, protected).SetName("change-password.post")

	app.Get(controller.Routes.Review, controller.ReviewShow, protected, superuser).SetName("ngo-approval.get")
	app.Post(controller.Routes.Review+"/approve", controller.Approve, protected, superuser).SetName("ngo-approve.post")
	app.Post(controller.Routes.Review+"/reject", controller.Reject, protected, superuser).SetName("ngo-reject.post")

	app.Get(controller.Routes.States, controller.States).SetName("states.get")
	app.Get(controller.Routes.Health, controller.Health).SetName("healthz.get")

	return controller
}

type AccountsControllerRoutes struct {
	Login                string
	Logout               string
	Signup               string
	OrganizationSignup   string
	Activate             string
	OrganizationActivate string
	Profile              string
	ProfileUpdate        string
	OrganizationUpdate   string
	ConfirmEmail         string
	ChangePassword       string
	Review               string
	States               string
	Health               string
}

type AccountsControllerViews struct {
	Login                            string
	Signup                           string
	OrganizationSignup               string
	ActivationPending                string
	CompleteRegistration             string
	CompleteOrganizationRegistration string
	ActivationCompleted              string
	LinkInvalid                      string
	Profile                          string
	OrganizationProfile              string
	EditProfile                      string
	EditOrganizationProfile          string
	ChangePassword                   string
	Review                           string
}

type AccountsController struct {
	Debug        bool
	UseHashid    bool
	Site         Site
	Logger       Logger
	Repo         RepositoryManager
	Tokens       ActivationTokens
	Notifier     Notifier
	Auther       HTTPAuthenticator
	ActivitySink ActivitySink
	Flash        Flasher
	Routes       *AccountsControllerRoutes
	Views        *AccountsControllerViews
	ErrorHandler router.ErrorHandler

	signup         *SignupHandler
	activate       *ActivateHandler
	updateProfile  *UpdateProfileHandler
	confirmEmail   *ConfirmEmailHandler
	changePassword *ChangePasswordHandler
	review         *ReviewOrganizationHandler
}

type AccountsControllerOption func(*AccountsController) *AccountsController

// WithLogger sets the logger used by the controller and its handlers
func (a *AccountsController) WithLogger(logger Logger) *AccountsController {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

func NewAccountsController(opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger:       defLogger{},
		ActivitySink: noopActivitySink{},
		Flash:        routerFlash{},
		Site:         Site{Scheme: "http", Domain: "localhost:8080"},
		Routes: &AccountsControllerRoutes{
			Login:                LoginRoute,
			Logout:               "/logout",
			Signup:               "/accounts/signup",
			OrganizationSignup:   "/accounts/organization/signup",
			Activate:             "/accounts/activate/:uid/:token",
			OrganizationActivate: "/accounts/organization/activate/:uid/:token",
			Profile:              "/accounts/profile",
			ProfileUpdate:        "/accounts/profile/update",
			OrganizationUpdate:   "/accounts/profile/update-ngo",
			ConfirmEmail:         "/accounts/confirm-email/:uid",
			ChangePassword:       "/accounts/change-password",
			Review:               "/accounts/ngo-approval/:id",
			States:               "/accounts/states",
			Health:               "/healthz",
		},
		Views: &AccountsControllerViews{
			Login:                            "accounts/login",
			Signup:                           "accounts/signup",
			OrganizationSignup:               "accounts/organization_signup",
			ActivationPending:                "accounts/activation_pending",
			CompleteRegistration:             "accounts/complete_registration",
			CompleteOrganizationRegistration: "accounts/complete_organization_registration",
			ActivationCompleted:              "accounts/activation_completed",
			LinkInvalid:                      "accounts/link_invalid",
			Profile:                          "accounts/view_profile",
			OrganizationProfile:              "accounts/ngo_profile",
			EditProfile:                      "accounts/edit_profile",
			EditOrganizationProfile:          "accounts/edit_ngo_profile",
			ChangePassword:                   "accounts/change_password",
			Review:                           "accounts/ngo_approval",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in accounts controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in accounts controller...")
	}

	if c.Tokens == nil {
		panic("Missing ActivationTokens in accounts controller...")
	}

	if c.Notifier == nil {
		panic("Missing Notifier in accounts controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}

	c.signup = NewSignupHandler(c.Repo, c.Tokens, c.Notifier).
		WithLogger(c.Logger).
		WithActivitySink(c.ActivitySink)
	c.activate = NewActivateHandler(c.Repo, c.Tokens, c.Notifier).
		WithLogger(c.Logger).
		WithActivitySink(c.ActivitySink)
	c.updateProfile = NewUpdateProfileHandler(c.Repo, c.Notifier).
		WithLogger(c.Logger).
		WithActivitySink(c.ActivitySink)
	c.confirmEmail = NewConfirmEmailHandler(c.Repo).
		WithLogger(c.Logger).
		WithActivitySink(c.ActivitySink)
	c.changePassword = NewChangePasswordHandler(c.Repo).
		WithLogger(c.Logger).
		WithActivitySink(c.ActivitySink)
	c.review = NewReviewOrganizationHandler(c.Repo, c.Notifier).
		WithLogger(c.Logger).
		WithActivitySink(c.ActivitySink)

	return c
}

func (a *AccountsController) render(ctx router.Context, view string, data router.ViewContext) error {
	return ctx.Render(view, MergeTemplateData(ctx, data))
}

func (a *AccountsController) renderStatus(ctx router.Context, status int, view string, data router.ViewContext) error {
	return ctx.Status(status).Render(view, MergeTemplateData(ctx, data))
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"username" json:"username"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the username or email
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(1, 254)),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountsController) LoginShow(ctx router.Context) error {
	if _, ok := CurrentAccount(ctx); ok {
		return ctx.Redirect(a.Routes.Profile, http.StatusFound)
	}
	return a.render(ctx, a.Views.Login, router.ViewContext{
		"errors": FieldErrors{},
		"record": LoginRequest{},
	})
}

func (a *AccountsController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.renderStatus(ctx, http.StatusBadRequest, a.Views.Login, router.ViewContext{
			"errors": FieldErrors{"form": "Failed to parse form"},
			"record": LoginRequest{},
		})
	}

	if err := payload.Validate(); err != nil {
		return a.render(ctx, a.Views.Login, router.ViewContext{
			"errors": FormatValidationErrorToMap(err),
			"record": LoginRequest{Identifier: payload.Identifier},
		})
	}

	if _, err := a.Auther.Login(ctx, payload); err != nil {
		message := MessageInvalidLogin
		status := http.StatusOK
		switch {
		case errors.Is(err, ErrAccountInactive):
			message = MessageInactiveLogin
		case errors.Is(err, ErrTooManyLoginAttempts):
			message = MessageLoginThrottled
			status = http.StatusTooManyRequests
		case !errors.IsCategory(err, errors.CategoryAuth):
			return a.ErrorHandler(ctx, err)
		}
		return a.renderStatus(ctx, status, a.Views.Login, router.ViewContext{
			"errors": FieldErrors{"authentication": message},
			"record": LoginRequest{Identifier: payload.Identifier},
		})
	}

	redirect := a.Auther.GetRedirectOrDefault(ctx)
	a.Logger.Debug("login succeeded, redirecting", "to", redirect)

	return ctx.Redirect(redirect, http.StatusSeeOther)
}

func (a *AccountsController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Redirect("/", http.StatusFound)
}

func (a *AccountsController) SignupShow(ctx router.Context) error {
	return a.signupShow(ctx, KindIndividual)
}

func (a *AccountsController) SignupPost(ctx router.Context) error {
	return a.signupPost(ctx, KindIndividual)
}

func (a *AccountsController) OrganizationSignupShow(ctx router.Context) error {
	return a.signupShow(ctx, KindOrganization)
}

func (a *AccountsController) OrganizationSignupPost(ctx router.Context) error {
	return a.signupPost(ctx, KindOrganization)
}

func (a *AccountsController) signupView(kind AccountKind) string {
	if kind == KindOrganization {
		return a.Views.OrganizationSignup
	}
	return a.Views.Signup
}

func (a *AccountsController) signupShow(ctx router.Context, kind AccountKind) error {
	if _, ok := CurrentAccount(ctx); ok {
		return ctx.Redirect(a.Routes.Profile, http.StatusFound)
	}
	return a.render(ctx, a.signupView(kind), router.ViewContext{
		"errors": FieldErrors{},
		"record": SignupPayload{},
	})
}

func (a *AccountsController) signupPost(ctx router.Context, kind AccountKind) error {
	if _, ok := CurrentAccount(ctx); ok {
		return ctx.Redirect(a.Routes.Profile, http.StatusSeeOther)
	}

	payload := new(SignupPayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload", "error", err)
		return a.renderStatus(ctx, http.StatusBadRequest, a.signupView(kind), router.ViewContext{
			"errors": FieldErrors{"form": "Failed to parse form"},
			"record": SignupPayload{},
		})
	}

	var res *SignupResponse
	err := a.signup.Execute(ctx.Context(), SignupMessage{
		Kind:      kind,
		Payload:   *payload,
		Site:      a.Site,
		UseHashid: a.UseHashid,
		OnResponse: func(resp *SignupResponse) {
			res = resp
		},
	})

	if err != nil {
		if fields, ok := AsFieldErrors(err); ok {
			return a.render(ctx, a.signupView(kind), router.ViewContext{
				"errors":        fields,
				"error_message": MessageCorrectErrors,
				"record":        SignupPayload{Username: payload.Username, Email: payload.Email},
			})
		}
		a.Logger.Error("signup failed", "kind", kind, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("=============================")
	}

	return a.render(ctx, a.Views.ActivationPending, router.ViewContext{
		"email": payload.Email,
		"kind":  string(kind),
	})
}

func (a *AccountsController) Activate(ctx router.Context) error {
	return a.activateAccount(ctx, KindIndividual)
}

func (a *AccountsController) ActivateOrganization(ctx router.Context) error {
	return a.activateAccount(ctx, KindOrganization)
}

func (a *AccountsController) activateAccount(ctx router.Context, kind AccountKind) error {
	msg := ActivateMessage{
		Kind:  kind,
		Ref:   ctx.Param("uid"),
		Token: ctx.Param("token"),
		Site:  a.Site,
	}

	if ctx.Method() == http.MethodPost {
		completion, err := a.bindCompletion(ctx, kind)
		if err != nil {
			a.Logger.Error("activation parse payload", "error", err)
			return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse form").
				WithCode(errors.CodeBadRequest))
		}
		msg.Completion = completion
	}

	var res *ActivateResponse
	msg.OnResponse = func(resp *ActivateResponse) {
		res = resp
	}

	if err := a.activate.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("activation failed", "kind", kind, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	view := a.Views.CompleteRegistration
	if kind == KindOrganization {
		view = a.Views.CompleteOrganizationRegistration
	}

	switch res.Stage {
	case ActivationInvalidLink:
		return a.renderStatus(ctx, http.StatusNotFound, a.Views.LinkInvalid, router.ViewContext{
			"message": MessageInvalidActivationLink,
		})
	case ActivationShowForm:
		return a.render(ctx, view, router.ViewContext{
			"errors":  FieldErrors{},
			"record":  res.Form,
			"account": res.Account,
		})
	case ActivationFormInvalid:
		return a.render(ctx, view, router.ViewContext{
			"errors":        res.Errors,
			"error_message": MessageCorrectErrors,
			"record":        res.Form,
			"account":       res.Account,
		})
	}

	if err := a.Auther.Impersonate(ctx, res.Account); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.render(ctx, a.Views.ActivationCompleted, router.ViewContext{
		"account":          res.Account,
		"pending_approval": res.Account.Profile.PendingApproval(),
	})
}

func (a *AccountsController) bindCompletion(ctx router.Context, kind AccountKind) (Completion, error) {
	if kind == KindOrganization {
		payload := new(OrganizationCompletion)
		if err := ctx.Bind(payload); err != nil {
			return nil, err
		}
		return *payload, nil
	}

	payload := new(IndividualCompletion)
	if err := ctx.Bind(payload); err != nil {
		return nil, err
	}
	return *payload, nil
}

func (a *AccountsController) ProfileShow(ctx router.Context) error {
	account, ok := CurrentAccount(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	view := a.Views.Profile
	if account.Kind() == KindOrganization {
		view = a.Views.OrganizationProfile
	}

	return a.render(ctx, view, router.ViewContext{
		"account": account,
		"profile": account.Profile,
	})
}

func (a *AccountsController) ProfileUpdateShow(ctx router.Context) error {
	account, ok := CurrentAccount(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	if account.Kind() == KindOrganization {
		return ctx.Redirect(a.Routes.OrganizationUpdate, http.StatusFound)
	}

	return a.renderProfileForm(ctx, a.Views.EditProfile, UserProfileUpdate{
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		Email:         account.Email,
		AddressFields: AddressOf(account.Profile),
	}, FieldErrors{}, "")
}

func (a *AccountsController) ProfileUpdatePost(ctx router.Context) error {
	account, ok := CurrentAccount(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	if account.Kind() == KindOrganization {
		return ctx.Redirect(a.Routes.OrganizationUpdate, http.StatusSeeOther)
	}

	payload := new(UserProfileUpdate)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("profile update parse payload", "error", err)
		return a.renderProfileForm(ctx, a.Views.EditProfile, UserProfileUpdate{}, FieldErrors{"form": "Failed to parse form"}, MessageCorrectErrors)
	}

	return a.updateProfileFor(ctx, account, *payload, a.Views.EditProfile, a.Routes.ProfileUpdate)
}

func (a *AccountsController) OrganizationUpdateShow(ctx router.Context) error {
	account, ok := CurrentAccount(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	if account.Kind() != KindOrganization {
		return ctx.Redirect(a.Routes.ProfileUpdate, http.StatusFound)
	}

	return a.renderProfileForm(ctx, a.Views.EditOrganizationProfile, OrganizationProfileUpdate{
		Email:            account.Email,
		OrganizationName: account.Profile.OrganizationName,
		Description:      account.Profile.Description,
		Website:          account.Profile.Website,
		AddressFields:    AddressOf(account.Profile),
	}, FieldErrors{}, "")
}

func (a *AccountsController) OrganizationUpdatePost(ctx router.Context) error {
	account, ok := CurrentAccount(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	if account.Kind() != KindOrganization {
		return ctx.Redirect(a.Routes.ProfileUpdate, http.StatusSeeOther)
	}

	payload := new(OrganizationProfileUpdate)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("organization update parse payload", "error", err)
		return a.renderProfileForm(ctx, a.Views.EditOrganizationProfile, OrganizationProfileUpdate{}, FieldErrors{"form": "Failed to parse form"}, MessageCorrectErrors)
	}

	return a.updateProfileFor(ctx, account, *payload, a.Views.EditOrganizationProfile, a.Routes.OrganizationUpdate)
}

func (a *AccountsController) updateProfileFor(ctx router.Context, account *Account, update ProfileUpdate, view, back string) error {
	var res *UpdateProfileResponse
	err := a.updateProfile.Execute(ctx.Context(), UpdateProfileMessage{
		AccountID: account.ID,
		Update:    update,
		Site:      a.Site,
		OnResponse: func(resp *UpdateProfileResponse) {
			res = resp
		},
	})

	if err != nil {
		if fields, ok := AsFieldErrors(err); ok {
			return a.renderProfileForm(ctx, view, update, fields, MessageCorrectErrors)
		}
		a.Logger.Error("profile update failed", "account", account.ID, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	message := router.ViewContext{
		"system_message": MessageProfileUpdated,
	}
	if res.PendingEmail != "" {
		message["warning_message"] = EmailChangeNotice(res.PendingEmail, res.Account.Email)
	}

	return a.Flash.WithSuccess(ctx, message).Redirect(back, http.StatusSeeOther)
}

func (a *AccountsController) renderProfileForm(ctx router.Context, view string, record any, fields FieldErrors, errMessage string) error {
	countries, err := a.Repo.Geo().Countries(ctx.Context())
	if err != nil {
		a.Logger.Warn("failed to load countries", "error", err)
		countries = []Country{}
	}

	data := router.ViewContext{
		"errors":    fields,
		"record":    record,
		"countries": countries,
	}
	if errMessage != "" {
		data["error_message"] = errMessage
	}

	return a.render(ctx, view, data)
}

func (a *AccountsController) ConfirmEmail(ctx router.Context) error {
	err := a.confirmEmail.Execute(ctx.Context(), ConfirmEmailMessage{
		Ref: ctx.Param("uid"),
	})

	if err != nil {
		if errors.Is(err, ErrInvalidLink) {
			return a.renderStatus(ctx, http.StatusNotFound, a.Views.LinkInvalid, router.ViewContext{
				"message": MessageInvalidEmailLink,
			})
		}
		if errors.Is(err, ErrEmailTaken) {
			a.Logger.Info("email confirmation rejected", "error", err)
			return a.Flash.WithError(ctx, router.ViewContext{
				"error_message": ErrEmailTaken.Message,
			}).Redirect(a.Routes.Profile, http.StatusFound)
		}
		return a.ErrorHandler(ctx, err)
	}

	return a.Flash.WithSuccess(ctx, router.ViewContext{
		"system_message": MessageEmailConfirmed,
	}).Redirect(a.Routes.Profile, http.StatusFound)
}

func (a *AccountsController) ChangePasswordShow(ctx router.Context) error {
	return a.render(ctx, a.Views.ChangePassword, router.ViewContext{
		"errors": FieldErrors{},
	})
}

func (a *AccountsController) ChangePasswordPost(ctx router.Context) error {
	account, ok := CurrentAccount(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	payload := new(PasswordChangePayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("change password parse payload", "error", err)
		return a.renderStatus(ctx, http.StatusBadRequest, a.Views.ChangePassword, router.ViewContext{
			"errors": FieldErrors{"form": "Failed to parse form"},
		})
	}

	var updated *Account
	err := a.changePassword.Execute(ctx.Context(), ChangePasswordMessage{
		AccountID: account.ID,
		Payload:   *payload,
		OnResponse: func(acc *Account) {
			updated = acc
		},
	})

	if err != nil {
		if fields, ok := AsFieldErrors(err); ok {
			return a.render(ctx, a.Views.ChangePassword, router.ViewContext{
				"errors":        fields,
				"error_message": MessageCorrectErrors,
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	// the old session carries the previous password fingerprint
	if err := a.Auther.Impersonate(ctx, updated); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return a.Flash.WithSuccess(ctx, router.ViewContext{
		"system_message": MessagePasswordUpdated,
	}).Redirect(a.Routes.ChangePassword, http.StatusSeeOther)
}

func (a *AccountsController) ReviewShow(ctx router.Context) error {
	id, err := a.profileID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	profile, err := a.Repo.Profiles().GetByID(ctx.Context(), id)
	if err != nil {
		if isNotFound(err) {
			return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryNotFound, "organization not found").
				WithCode(errors.CodeNotFound))
		}
		return a.ErrorHandler(ctx, err)
	}

	if !profile.IsOrganization {
		return a.ErrorHandler(ctx, errors.New("organization not found", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound))
	}

	pending, err := a.Repo.Profiles().ListPendingOrganizations(ctx.Context())
	if err != nil {
		a.Logger.Warn("failed to list pending organizations", "error", err)
		pending = []*Profile{}
	}

	return a.render(ctx, a.Views.Review, router.ViewContext{
		"ngo":     profile,
		"user":    profile.Account,
		"pending": pending,
	})
}

func (a *AccountsController) Approve(ctx router.Context) error {
	return a.decide(ctx, ReviewApprove, MessageOrganizationApproved)
}

func (a *AccountsController) Reject(ctx router.Context) error {
	return a.decide(ctx, ReviewReject, MessageOrganizationRejected)
}

func (a *AccountsController) decide(ctx router.Context, decision ReviewDecision, message string) error {
	actor, ok := CurrentAccount(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnableToFindSession)
	}

	id, err := a.profileID(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	var reviewed *Profile
	err = a.review.Execute(ctx.Context(), ReviewOrganizationMessage{
		Actor:     actor,
		ProfileID: id,
		Decision:  decision,
		Site:      a.Site,
		OnResponse: func(profile *Profile) {
			reviewed = profile
		},
	})
	if err != nil {
		a.Logger.Error("organization review failed", "profile", id, "decision", decision, "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return a.Flash.WithSuccess(ctx, router.ViewContext{
		"system_message": message,
	}).Redirect(ReviewPath(reviewed), http.StatusSeeOther)
}

func (a *AccountsController) profileID(ctx router.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryNotFound, "organization not found").
			WithCode(errors.CodeNotFound)
	}
	return id, nil
}

// States answers the address form dropdown. Anything but a known
// country id yields an empty list.
func (a *AccountsController) States(ctx router.Context) error {
	states := []State{}

	countryID, err := strconv.ParseInt(ctx.Query("country_id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusOK, states)
	}

	found, err := a.Repo.Geo().StatesByCountry(ctx.Context(), countryID)
	if err != nil {
		a.Logger.Warn("failed to load states", "country_id", countryID, "error", err)
		return ctx.JSON(http.StatusOK, states)
	}

	return ctx.JSON(http.StatusOK, found)
}

func (a *AccountsController) Health(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (a *AccountsController) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := http.StatusInternalServerError
	view := "errors/500"
	switch richErr.Category {
	case errors.CategoryAuth:
		return c.Redirect(a.Routes.Login, http.StatusFound)
	case errors.CategoryAuthz:
		status, view = http.StatusForbidden, "errors/403"
	case errors.CategoryNotFound:
		status, view = http.StatusNotFound, "errors/404"
	case errors.CategoryBadInput, errors.CategoryValidation:
		status, view = http.StatusBadRequest, "errors/400"
	}

	a.Logger.Error("accounts controller error",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return a.renderStatus(c, status, view, router.ViewContext{
		"error": richErr,
	})
}
