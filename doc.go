// Package accounts implements the account subsystem of the Janani Care
// donation platform.
//
// Activation:
//   - Signup stores an inactive account and emails a link built from an
//     account reference and a stateless token. Tokens are HMACs over the
//     account id, password hash and active flag, so activating the account
//     or changing its password invalidates every outstanding link.
//   - The link shows a completion form. Only a valid submission activates
//     the account, using a compare-and-swap on the active flag.
//
// Email reconfirmation:
//   - Profile updates stage a changed email in Profile.UnconfirmedEmail and
//     email a confirmation link to the new address. Individual and NGO
//     profiles share the same staging code.
//
// Organization approval:
//   - NGO accounts stay inactive at the profile level after activation until
//     a superuser approves them. Staff accounts are notified on new NGOs and
//     the NGO is notified on every approve or reject.
//
// Notifications go out after the database transaction commits.
package accounts
