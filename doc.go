// Package gateway mediates third-party OAuth login and local
// signup/login for an instance, reconciling provider-asserted
// identities against local accounts.
//
// Reconciliation:
//   - Accounts are keyed by email. A provider identity whose email
//     matches an existing account is a login; anything else is a
//     signup attempt, subject to the instance signup policy
//     (ENABLE_SIGNUP with a pending-invite override).
//   - The Reconciler runs lookup, gating, creation, and login
//     bookkeeping in a single transaction, and resolves concurrent
//     signups for the same email through the store's uniqueness
//     constraint rather than check-then-create.
//
// Flows:
//   - FlowController exposes the two-phase OAuth flow (initiate,
//     callback) plus local sign-up/sign-in over go-router. The page
//     the user came from is recorded at initiate and becomes the
//     post-login redirect target.
//   - SessionEstablisher signs a JWT for the reconciled account and
//     sets it as the session cookie.
package gateway
