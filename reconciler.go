package gateway

import (
	"context"
	"time"

	"github.com/goliatone/go-auth-gateway/provider"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// MediumEmail is the login medium recorded for local password flows;
// provider flows record the provider name.
const MediumEmail = "email"

// Reconciler resolves a verified identity or local credential pair to
// exactly one account. Lookup is keyed by email alone: a returning
// email logs in, an unknown one signs up when policy allows.
type Reconciler struct {
	repo     RepositoryManager
	settings Settings
	policy   PasswordPolicy
	logger   Logger
	now      func() time.Time
}

// ReconcilerOption configures the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(logger Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPasswordPolicy sets the policy applied to local sign-up passwords.
func WithPasswordPolicy(policy PasswordPolicy) ReconcilerOption {
	return func(r *Reconciler) {
		r.policy = policy
	}
}

// WithTimeSource overrides the clock, mostly for tests.
func WithTimeSource(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a Reconciler over the given stores and settings.
func NewReconciler(repo RepositoryManager, settings Settings, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		repo:     repo,
		settings: settings,
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// ReconcileIdentity logs in or signs up the account for a provider
// identity. It reports whether the account was created.
//
// The whole decision runs in one transaction. When two requests race
// through the not-found branch the loser hits the unique email
// constraint; the transaction is retried once and resolves as a login.
func (r *Reconciler) ReconcileIdentity(ctx context.Context, identity *provider.Identity, visit *Visit) (*Account, bool, error) {
	if identity == nil || identity.Email == "" {
		return nil, false, provider.ErrIdentityIncomplete
	}

	visit = r.visitFor(visit, identity.Provider)

	var account *Account
	var created bool

	run := func() error {
		return r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var err error
			account, created, err = r.reconcileIdentityTx(ctx, tx, identity, visit)
			return err
		})
	}

	err := run()
	if err != nil && IsUniqueViolation(err) {
		r.logger.Debug("reconcile: lost signup race for %s, retrying as login", identity.Email)
		err = run()
	}

	if err != nil {
		return nil, false, err
	}

	return account, created, nil
}

func (r *Reconciler) reconcileIdentityTx(ctx context.Context, tx bun.Tx, identity *provider.Identity, visit *Visit) (*Account, bool, error) {
	account, err := r.repo.Accounts().GetByEmailTx(ctx, tx, identity.Email)

	switch {
	case err == nil:
		if err := r.completeLoginTx(ctx, tx, account, visit); err != nil {
			return nil, false, err
		}

	case repository.IsRecordNotFound(err):
		account, err = r.signupIdentityTx(ctx, tx, identity, visit)
		if err != nil {
			return nil, false, err
		}

		if err := r.completeLoginTx(ctx, tx, account, visit); err != nil {
			return nil, false, err
		}

		return account, true, nil

	default:
		return nil, false, err
	}

	if err := r.storeCredentialTx(ctx, tx, account, identity); err != nil {
		return nil, false, err
	}

	return account, false, nil
}

func (r *Reconciler) signupIdentityTx(ctx context.Context, tx bun.Tx, identity *provider.Identity, visit *Visit) (*Account, error) {
	if err := r.checkSignupAllowedTx(ctx, tx, identity.Email); err != nil {
		return nil, err
	}

	// Provider accounts carry no usable password; an unguessable one is
	// set so the local sign-in path cannot match. The provider already
	// verified the mailbox.
	record := &Account{
		Email:             identity.Email,
		FirstName:         identity.FirstName,
		LastName:          identity.LastName,
		Avatar:            identity.AvatarURL,
		PasswordHash:      RandomPasswordHash(),
		IsPasswordAutoset: true,
		IsEmailVerified:   true,
	}

	account, err := r.repo.Accounts().CreateTx(ctx, tx, record)
	if err != nil {
		return nil, err
	}

	if _, err := r.repo.Profiles().EnsureForAccountTx(ctx, tx, account.ID); err != nil {
		return nil, err
	}

	if err := r.storeCredentialTx(ctx, tx, account, identity); err != nil {
		return nil, err
	}

	return account, nil
}

// SignUpOption mutates the account record before it is persisted.
type SignUpOption func(*Account)

// WithSignUpName sets the name pair on the new account.
func WithSignUpName(first, last string) SignUpOption {
	return func(record *Account) {
		record.FirstName = first
		record.LastName = last
	}
}

// WithSignUpPhone sets a phone number on the new account. Callers
// normalize the value first, see NormalizePhone.
func WithSignUpPhone(phone string) SignUpOption {
	return func(record *Account) {
		record.Phone = phone
	}
}

// SignUp creates an account from a local email and password pair. The
// signup policy applies the same way it does for provider identities.
func (r *Reconciler) SignUp(ctx context.Context, email, password string, visit *Visit, opts ...SignUpOption) (*Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	if err := r.policy.Validate(password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	visit = r.visitFor(visit, MediumEmail)

	var account *Account
	err = r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := r.repo.Accounts().GetByEmailTx(ctx, tx, email)
		if err == nil {
			return ErrAccountExists
		}
		if !repository.IsRecordNotFound(err) {
			return err
		}

		if err := r.checkSignupAllowedTx(ctx, tx, email); err != nil {
			return err
		}

		record := &Account{
			Email:        email,
			PasswordHash: hash,
		}

		for _, opt := range opts {
			if opt != nil {
				opt(record)
			}
		}

		account, err = r.repo.Accounts().CreateTx(ctx, tx, record)
		if err != nil {
			return err
		}

		if _, err := r.repo.Profiles().EnsureForAccountTx(ctx, tx, account.ID); err != nil {
			return err
		}

		return r.completeLoginTx(ctx, tx, account, visit)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	return account, nil
}

// SignIn authenticates a local email and password pair. Accounts whose
// password is autoset never match, so provider-created accounts cannot
// be entered through the local path.
func (r *Reconciler) SignIn(ctx context.Context, email, password string, visit *Visit) (*Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	visit = r.visitFor(visit, MediumEmail)

	var account *Account
	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := r.repo.Accounts().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidCredentials
			}
			return err
		}

		if record.IsPasswordAutoset {
			return ErrInvalidCredentials
		}

		if err := ComparePasswordAndHash(password, record.PasswordHash); err != nil {
			return err
		}

		account = record
		return r.completeLoginTx(ctx, tx, account, visit)
	})

	if err != nil {
		return nil, err
	}

	return account, nil
}

// checkSignupAllowedTx enforces the instance signup policy: creation is
// allowed when ENABLE_SIGNUP is not "0", or when the email holds a
// pending invite.
func (r *Reconciler) checkSignupAllowedTx(ctx context.Context, tx bun.Tx, email string) error {
	if r.settings.SignupEnabled(ctx) {
		return nil
	}

	invited, err := r.repo.PendingInvites().ExistsForEmailTx(ctx, tx, email)
	if err != nil {
		return err
	}
	if invited {
		return nil
	}

	return ErrSignupDisabled.Clone().WithMetadata(map[string]any{
		"email": email,
	})
}

func (r *Reconciler) completeLoginTx(ctx context.Context, tx bun.Tx, account *Account, visit *Visit) error {
	if err := r.repo.Accounts().TrackLoginTx(ctx, tx, account, visit); err != nil {
		return err
	}

	account.LastLoginMedium = visit.Medium
	account.LastLoginIP = visit.IP
	account.LastLoginUagent = visit.UserAgent
	at := visit.At
	account.LastActive = &at
	account.LastLoginTime = &at
	account.TokenUpdatedAt = &at

	return nil
}

func (r *Reconciler) storeCredentialTx(ctx context.Context, tx bun.Tx, account *Account, identity *provider.Identity) error {
	if identity.Token == nil {
		return nil
	}

	record := CredentialFromIdentity(account.ID, identity)
	return r.repo.ProviderCredentials().UpsertTokenTx(ctx, tx, record)
}

func (r *Reconciler) visitFor(visit *Visit, medium string) *Visit {
	if visit == nil {
		visit = &Visit{}
	}
	if visit.Medium == "" {
		visit.Medium = medium
	}
	if visit.At.IsZero() {
		visit.At = r.now()
	}
	return visit
}
