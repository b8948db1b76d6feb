// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package ceremony

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
)

// Service orchestrates passkey registration and authentication
// ceremonies. All mutation of an identity's state happens inside a
// per-identity critical section, so concurrent ceremonies for the
// same identity serialize while distinct identities proceed in
// parallel.
type Service struct {
	issuer   *Issuer
	verifier *Verifier
	config   *Config
	creds    CredentialStore
	challs   ChallengeStore
	tokens   TokenGenerator // optional
	events   EventPublisher // optional
	locks    *kmutex.Kmutex
	logger   *slog.Logger
}

// ServiceParams contains dependencies for creating a ceremony service.
type ServiceParams struct {
	// Config is the ceremony configuration (required).
	Config *Config

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// ChallengeStore is the pending challenge persistence layer (required).
	ChallengeStore ChallengeStore

	// TokenGenerator is an optional post-ceremony token minter.
	// If nil, the service returns the base64-encoded user handle.
	TokenGenerator TokenGenerator

	// EventPublisher optionally receives ceremony outcomes.
	EventPublisher EventPublisher

	// Logger receives structured service logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewService creates a new ceremony service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	issuer, err := NewIssuer(params.Config)
	if err != nil {
		return nil, err
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		issuer:   issuer,
		verifier: NewVerifier(params.Config),
		config:   params.Config,
		creds:    params.CredentialStore,
		challs:   params.ChallengeStore,
		tokens:   params.TokenGenerator,
		events:   params.EventPublisher,
		locks:    kmutex.New(),
		logger:   logger,
	}, nil
}

// BeginRegistration starts a registration ceremony for the identity.
// Any prior pending registration challenge for the identity is
// overwritten and its token invalidated. Returns the credential
// creation options for the client and the ceremony token required at
// finish.
func (s *Service) BeginRegistration(ctx context.Context, identity, displayName string) (*protocol.CredentialCreation, string, error) {
	if identity == "" {
		return nil, "", WrapError("begin registration", ErrInvalidInput)
	}

	s.locks.Lock(identity)
	defer s.locks.Unlock(identity)

	existing, err := s.loadCredentials(ctx, identity)
	if err != nil {
		return nil, "", WrapError("get credentials", err)
	}

	ident := &Identity{Handle: identity, Name: displayName, Credentials: existing}
	options, challenge, err := s.issuer.RegistrationOptions(ident)
	if err != nil {
		return nil, "", err
	}

	rec := s.newChallengeRecord(identity, PurposeRegistration, challenge)
	if err := s.saveChallenge(ctx, rec); err != nil {
		return nil, "", WrapError("save challenge", err)
	}

	s.logger.Debug("registration challenge issued",
		"identity", identity,
		"expires_at", rec.ExpiresAt)

	return options, rec.Token, nil
}

// FinishRegistration completes a registration ceremony. The identity
// is resolved from the ceremony token, never from the response. The
// challenge is consumed regardless of outcome, so a retry after any
// failure requires a fresh begin. Returns a session token and the
// identity with its updated credential set.
func (s *Service) FinishRegistration(ctx context.Context, token string, response *protocol.ParsedCredentialCreationData) (string, *Identity, error) {
	if token == "" || response == nil {
		return "", nil, WrapError("finish registration", ErrInvalidInput)
	}

	rec, err := s.consumeChallenge(ctx, token, PurposeRegistration)
	if err != nil {
		return "", nil, err
	}

	s.locks.Lock(rec.Identity)
	defer s.locks.Unlock(rec.Identity)

	cred, err := s.verifier.VerifyRegistration(rec.Challenge, response)
	if err != nil {
		s.publishOutcome(ctx, rec, false, err, response.RawID)
		return "", nil, WrapError("verify registration", err)
	}

	if err := s.appendCredential(ctx, rec.Identity, cred); err != nil {
		return "", nil, WrapError("append credential", err)
	}

	creds, err := s.loadCredentials(ctx, rec.Identity)
	if err != nil {
		return "", nil, WrapError("get credentials", err)
	}
	ident := &Identity{Handle: rec.Identity, Credentials: creds}

	s.publishOutcome(ctx, rec, true, nil, cred.ID)
	s.logger.Info("registration complete",
		"identity", rec.Identity,
		"credential_id", base64.RawURLEncoding.EncodeToString(cred.ID))

	sessionToken, err := s.generateToken(ctx, ident)
	if err != nil {
		return "", nil, WrapError("generate token", err)
	}

	return sessionToken, ident, nil
}

// BeginAuthentication starts an authentication ceremony for the
// identity. The identity must have at least one registered credential.
// Any prior pending authentication challenge for the identity is
// overwritten and its token invalidated.
func (s *Service) BeginAuthentication(ctx context.Context, identity string) (*protocol.CredentialAssertion, string, error) {
	if identity == "" {
		return nil, "", WrapError("begin authentication", ErrInvalidInput)
	}

	s.locks.Lock(identity)
	defer s.locks.Unlock(identity)

	existing, err := s.loadCredentials(ctx, identity)
	if err != nil {
		return nil, "", WrapError("get credentials", err)
	}
	if len(existing) == 0 {
		return nil, "", WrapError("begin authentication", ErrNoCredentials)
	}

	ident := &Identity{Handle: identity, Credentials: existing}
	options, challenge, err := s.issuer.AuthenticationOptions(ident)
	if err != nil {
		return nil, "", err
	}

	rec := s.newChallengeRecord(identity, PurposeAuthentication, challenge)
	if err := s.saveChallenge(ctx, rec); err != nil {
		return nil, "", WrapError("save challenge", err)
	}

	s.logger.Debug("authentication challenge issued",
		"identity", identity,
		"expires_at", rec.ExpiresAt)

	return options, rec.Token, nil
}

// FinishAuthentication completes an authentication ceremony. The
// identity is resolved from the ceremony token. On success the
// credential's signature counter and last-used time are persisted
// before the session token is returned. The challenge is consumed
// regardless of outcome.
func (s *Service) FinishAuthentication(ctx context.Context, token string, response *protocol.ParsedCredentialAssertionData) (string, *Identity, error) {
	if token == "" || response == nil {
		return "", nil, WrapError("finish authentication", ErrInvalidInput)
	}

	rec, err := s.consumeChallenge(ctx, token, PurposeAuthentication)
	if err != nil {
		return "", nil, err
	}

	s.locks.Lock(rec.Identity)
	defer s.locks.Unlock(rec.Identity)

	owner, cred, err := s.getByCredentialID(ctx, response.RawID)
	if err != nil {
		s.publishOutcome(ctx, rec, false, err, response.RawID)
		return "", nil, WrapError("get credential", err)
	}
	if owner != rec.Identity {
		s.publishOutcome(ctx, rec, false, ErrCredentialNotFound, response.RawID)
		return "", nil, WrapError("get credential", ErrCredentialNotFound)
	}

	newCount, err := s.verifier.VerifyAuthentication(rec.Challenge, cred, response)
	if err != nil {
		s.publishOutcome(ctx, rec, false, err, response.RawID)
		return "", nil, WrapError("verify authentication", err)
	}

	cred.SignCount = newCount
	cred.LastUsedAt = time.Now().UTC()
	if err := s.updateCredential(ctx, rec.Identity, cred); err != nil {
		return "", nil, WrapError("update credential", err)
	}

	creds, err := s.loadCredentials(ctx, rec.Identity)
	if err != nil {
		return "", nil, WrapError("get credentials", err)
	}
	ident := &Identity{Handle: rec.Identity, Credentials: creds}

	s.publishOutcome(ctx, rec, true, nil, cred.ID)
	s.logger.Info("authentication complete",
		"identity", rec.Identity,
		"credential_id", base64.RawURLEncoding.EncodeToString(cred.ID),
		"sign_count", newCount)

	sessionToken, err := s.generateToken(ctx, ident)
	if err != nil {
		return "", nil, WrapError("generate token", err)
	}

	return sessionToken, ident, nil
}

// IsRegistered reports whether the identity has any registered
// credentials.
func (s *Service) IsRegistered(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return false, WrapError("is registered", ErrInvalidInput)
	}
	creds, err := s.loadCredentials(ctx, identity)
	if err != nil {
		return false, WrapError("get credentials", err)
	}
	return len(creds) > 0, nil
}

// GetCredentials retrieves all credentials registered for the identity.
func (s *Service) GetCredentials(ctx context.Context, identity string) ([]*Credential, error) {
	if identity == "" {
		return nil, WrapError("get credentials", ErrInvalidInput)
	}
	creds, err := s.loadCredentials(ctx, identity)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}
	return creds, nil
}

// DeleteIdentity removes all credentials registered for the identity.
func (s *Service) DeleteIdentity(ctx context.Context, identity string) error {
	if identity == "" {
		return WrapError("delete identity", ErrInvalidInput)
	}

	s.locks.Lock(identity)
	defer s.locks.Unlock(identity)

	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.creds.DeleteCredentials(sctx, identity); err != nil {
		return WrapError("delete credentials", s.mapStoreError(err))
	}
	return nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// newChallengeRecord mints a challenge record with a fresh ceremony
// token and the configured lifetime.
func (s *Service) newChallengeRecord(identity string, purpose Purpose, challenge string) *ChallengeRecord {
	now := time.Now().UTC()
	return &ChallengeRecord{
		Token:     uuid.NewString(),
		Identity:  identity,
		Purpose:   purpose,
		Challenge: challenge,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.config.ChallengeTTL),
	}
}

// consumeChallenge resolves and deletes the pending challenge for the
// token. The store delete is the single-use claim: it fails with
// ErrNoPendingChallenge when the token was already consumed, so of
// two racing finishes exactly one proceeds to verification. The claim
// happens before verification so the challenge is spent even when
// verification fails. An expired or wrong-purpose record is treated
// as no pending challenge.
func (s *Service) consumeChallenge(ctx context.Context, token string, purpose Purpose) (*ChallengeRecord, error) {
	sctx, cancel := s.storeContext(ctx)
	defer cancel()

	rec, err := s.challs.GetChallenge(sctx, token)
	if err != nil {
		return nil, WrapError("get challenge", s.mapStoreError(err))
	}

	if err := s.challs.DeleteChallenge(sctx, token); err != nil {
		return nil, WrapError("delete challenge", s.mapStoreError(err))
	}

	if rec.Purpose != purpose {
		return nil, WrapError("get challenge", ErrNoPendingChallenge)
	}
	if rec.Expired(time.Now().UTC()) {
		s.logger.Debug("challenge expired",
			"identity", rec.Identity,
			"purpose", rec.Purpose)
		return nil, WrapError("get challenge", ErrNoPendingChallenge)
	}

	return rec, nil
}

func (s *Service) loadCredentials(ctx context.Context, identity string) ([]*Credential, error) {
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	creds, err := s.creds.GetCredentials(sctx, identity)
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return creds, nil
}

func (s *Service) saveChallenge(ctx context.Context, rec *ChallengeRecord) error {
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.challs.SaveChallenge(sctx, rec); err != nil {
		return s.mapStoreError(err)
	}
	return nil
}

func (s *Service) appendCredential(ctx context.Context, identity string, cred *Credential) error {
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.creds.AppendCredential(sctx, identity, cred); err != nil {
		return s.mapStoreError(err)
	}
	return nil
}

func (s *Service) updateCredential(ctx context.Context, identity string, cred *Credential) error {
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.creds.UpdateCredential(sctx, identity, cred); err != nil {
		return s.mapStoreError(err)
	}
	return nil
}

func (s *Service) getByCredentialID(ctx context.Context, credID []byte) (string, *Credential, error) {
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	owner, cred, err := s.creds.GetByCredentialID(sctx, credID)
	if err != nil {
		return "", nil, s.mapStoreError(err)
	}
	return owner, cred, nil
}

// storeContext bounds a store operation by the configured timeout.
func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.StoreTimeout)
}

// mapStoreError maps infrastructure failures to the retryable
// ErrStoreUnavailable while letting domain errors pass through.
func (s *Service) mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNoPendingChallenge),
		errors.Is(err, ErrCredentialNotFound),
		errors.Is(err, ErrCredentialExists),
		errors.Is(err, ErrNoCredentials),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// publishOutcome delivers a ceremony outcome to the configured
// publisher. Publish failures are logged, never returned.
func (s *Service) publishOutcome(ctx context.Context, rec *ChallengeRecord, verified bool, cause error, credID []byte) {
	if s.events == nil {
		return
	}

	outcome := &Outcome{
		Identity: rec.Identity,
		Purpose:  rec.Purpose,
		Verified: verified,
		At:       time.Now().UTC(),
	}
	if cause != nil {
		outcome.Reason = FailureReason(cause)
	}
	if len(credID) > 0 {
		outcome.CredentialID = base64.RawURLEncoding.EncodeToString(credID)
	}

	if err := s.events.PublishOutcome(ctx, outcome); err != nil {
		s.logger.Warn("failed to publish ceremony outcome",
			"identity", rec.Identity,
			"purpose", rec.Purpose,
			"error", err)
	}
}

// generateToken mints the post-ceremony session token.
func (s *Service) generateToken(ctx context.Context, ident *Identity) (string, error) {
	if s.tokens != nil {
		return s.tokens.GenerateToken(ctx, ident)
	}
	return base64.RawURLEncoding.EncodeToString(ident.WebAuthnID()), nil
}
