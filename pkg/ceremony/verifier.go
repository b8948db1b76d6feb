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
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// Verifier checks authenticator responses against the issued challenge
// and the relying party configuration. Checks run in a fixed order:
// ceremony type, challenge, origin, relying party binding, flags,
// signature, then signature counter. The first failure wins; callers
// see the specific class, clients must not.
type Verifier struct {
	rpIDHash         []byte
	origins          []string
	requireUserVerif bool
}

// NewVerifier creates a Verifier from a validated configuration.
func NewVerifier(config *Config) *Verifier {
	hash := sha256.Sum256([]byte(config.RPID))
	return &Verifier{
		rpIDHash:         hash[:],
		origins:          config.RPOrigins,
		requireUserVerif: config.UserVerification == "required",
	}
}

// VerifyRegistration validates a parsed attestation response against
// the expected challenge and returns the credential to persist.
func (v *Verifier) VerifyRegistration(expectedChallenge string, response *protocol.ParsedCredentialCreationData) (*Credential, error) {
	if response == nil {
		return nil, ErrInvalidInput
	}

	client := response.Response.CollectedClientData
	if client.Type != protocol.CreateCeremony {
		return nil, ErrInvalidInput
	}
	if err := v.checkClientData(expectedChallenge, &client); err != nil {
		return nil, err
	}

	authData := response.Response.AttestationObject.AuthData
	if !bytes.Equal(authData.RPIDHash, v.rpIDHash) {
		return nil, ErrRelyingPartyMismatch
	}
	if err := v.checkFlags(authData.Flags); err != nil {
		return nil, err
	}
	if !authData.Flags.HasAttestedCredentialData() {
		return nil, ErrInvalidInput
	}
	if len(authData.AttData.CredentialID) == 0 || len(authData.AttData.CredentialPublicKey) == 0 {
		return nil, ErrInvalidInput
	}

	// The stored public key must parse before the credential is accepted.
	if _, err := webauthncose.ParsePublicKey(authData.AttData.CredentialPublicKey); err != nil {
		return nil, ErrSignatureInvalid
	}

	if err := v.verifyAttestationStatement(response); err != nil {
		return nil, err
	}

	flags := authData.Flags
	return &Credential{
		ID:              authData.AttData.CredentialID,
		PublicKey:       authData.AttData.CredentialPublicKey,
		AttestationType: response.Response.AttestationObject.Format,
		Transport:       response.Response.Transports,
		AAGUID:          authData.AttData.AAGUID,
		SignCount:       authData.Counter,
		UserPresent:     flags.UserPresent(),
		UserVerified:    flags.UserVerified(),
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// VerifyAuthentication validates a parsed assertion response against
// the expected challenge and the stored credential. On success it
// returns the counter value to persist.
func (v *Verifier) VerifyAuthentication(expectedChallenge string, cred *Credential, response *protocol.ParsedCredentialAssertionData) (uint32, error) {
	if response == nil || cred == nil {
		return 0, ErrInvalidInput
	}
	if !bytes.Equal(response.RawID, cred.ID) {
		return 0, ErrCredentialNotFound
	}

	client := response.Response.CollectedClientData
	if client.Type != protocol.AssertCeremony {
		return 0, ErrInvalidInput
	}
	if err := v.checkClientData(expectedChallenge, &client); err != nil {
		return 0, err
	}

	authData := response.Response.AuthenticatorData
	if !bytes.Equal(authData.RPIDHash, v.rpIDHash) {
		return 0, ErrRelyingPartyMismatch
	}
	if err := v.checkFlags(authData.Flags); err != nil {
		return 0, err
	}

	// The assertion signs authenticatorData || SHA-256(clientDataJSON).
	key, err := webauthncose.ParsePublicKey(cred.PublicKey)
	if err != nil {
		return 0, ErrSignatureInvalid
	}
	clientDataHash := sha256.Sum256(response.Raw.AssertionResponse.ClientDataJSON)
	signedData := make([]byte, 0, len(response.Raw.AssertionResponse.AuthenticatorData)+len(clientDataHash))
	signedData = append(signedData, response.Raw.AssertionResponse.AuthenticatorData...)
	signedData = append(signedData, clientDataHash[:]...)

	valid, err := webauthncose.VerifySignature(key, signedData, response.Response.Signature)
	if err != nil || !valid {
		return 0, ErrSignatureInvalid
	}

	return checkCounter(cred.SignCount, authData.Counter)
}

// checkClientData verifies the challenge echo and origin. The
// challenge comparison is constant-time.
func (v *Verifier) checkClientData(expectedChallenge string, client *protocol.CollectedClientData) error {
	if subtle.ConstantTimeCompare([]byte(client.Challenge), []byte(expectedChallenge)) != 1 {
		return ErrChallengeMismatch
	}

	originAllowed := false
	for _, origin := range v.origins {
		if client.Origin == origin {
			originAllowed = true
			break
		}
	}
	if !originAllowed {
		return ErrOriginMismatch
	}

	return nil
}

// checkFlags verifies user presence and, when the policy requires it,
// user verification.
func (v *Verifier) checkFlags(flags protocol.AuthenticatorFlags) error {
	if !flags.UserPresent() {
		return ErrUserNotPresent
	}
	if v.requireUserVerif && !flags.UserVerified() {
		return ErrUserNotVerified
	}
	return nil
}

// verifyAttestationStatement checks the attestation statement for the
// formats accepted at registration. "none" carries no statement.
// "packed" self-attestation is verified against the credential public
// key; certificate chains are not evaluated.
func (v *Verifier) verifyAttestationStatement(response *protocol.ParsedCredentialCreationData) error {
	obj := response.Response.AttestationObject

	switch obj.Format {
	case "none":
		if len(obj.AttStatement) != 0 {
			return ErrInvalidInput
		}
		return nil

	case "packed":
		if _, hasChain := obj.AttStatement["x5c"]; hasChain {
			// Full attestation chains are accepted without chain
			// validation. The credential key still proves possession
			// via the assertion ceremony.
			return nil
		}
		sig, ok := obj.AttStatement["sig"].([]byte)
		if !ok || len(sig) == 0 {
			return ErrSignatureInvalid
		}

		key, err := webauthncose.ParsePublicKey(obj.AuthData.AttData.CredentialPublicKey)
		if err != nil {
			return ErrSignatureInvalid
		}
		clientDataHash := sha256.Sum256(response.Raw.AttestationResponse.ClientDataJSON)
		signedData := make([]byte, 0, len(obj.RawAuthData)+len(clientDataHash))
		signedData = append(signedData, obj.RawAuthData...)
		signedData = append(signedData, clientDataHash[:]...)

		valid, err := webauthncose.VerifySignature(key, signedData, sig)
		if err != nil || !valid {
			return ErrSignatureInvalid
		}
		return nil

	default:
		// Unknown formats are accepted without statement validation,
		// matching an attestation conveyance preference of "none".
		return nil
	}
}

// checkCounter enforces signature counter monotonicity. A reported
// counter must be strictly greater than the stored one, except when
// both are zero, which indicates an authenticator that does not
// implement counters. Any other non-increase is treated as a cloned
// authenticator signal.
func checkCounter(stored, reported uint32) (uint32, error) {
	if reported == 0 && stored == 0 {
		return 0, nil
	}
	if reported <= stored {
		return 0, ErrCounterRegressed
	}
	return reported, nil
}
