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
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRPID   = "example.com"
	testOrigin = "https://example.com"
)

func testChallenge(seed string) string {
	return base64.RawURLEncoding.EncodeToString([]byte("challenge-" + seed))
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	cfg := &Config{
		RPID:          testRPID,
		RPDisplayName: "Example",
		RPOrigins:     []string{testOrigin},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return NewVerifier(cfg)
}

func newTestAuthenticator(t *testing.T, opts ...MockAuthenticatorOption) *MockAuthenticator {
	t.Helper()
	auth, err := NewMockAuthenticator(testRPID, opts...)
	require.NoError(t, err)
	return auth
}

func TestVerifyRegistration_None(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	challenge := testChallenge("reg")

	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)

	cred, err := v.VerifyRegistration(challenge, response)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, auth.CredentialID, cred.ID)
	assert.Equal(t, "none", cred.AttestationType)
	assert.Equal(t, auth.AAGUID, cred.AAGUID)
	assert.Equal(t, uint32(0), cred.SignCount)
	assert.True(t, cred.UserPresent)
	assert.True(t, cred.UserVerified)
	assert.False(t, cred.CreatedAt.IsZero())
}

func TestVerifyRegistration_PackedSelfAttestation(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t, WithAttestationFormat("packed"))
	challenge := testChallenge("packed")

	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)

	cred, err := v.VerifyRegistration(challenge, response)
	require.NoError(t, err)
	assert.Equal(t, "packed", cred.AttestationType)
}

func TestVerifyRegistration_PackedTamperedSignature(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t, WithAttestationFormat("packed"))
	challenge := testChallenge("tampered")

	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)

	sig := response.Response.AttestationObject.AttStatement["sig"].([]byte)
	sig[len(sig)-1] ^= 0xff

	_, err = v.VerifyRegistration(challenge, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyRegistration_ChallengeMismatch(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)

	response, err := auth.CreateAttestationResponse(testChallenge("issued"), testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(testChallenge("expected"), response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeMismatch)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyRegistration_OriginMismatch(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	challenge := testChallenge("origin")

	response, err := auth.CreateAttestationResponse(challenge, "https://evil.example.org")
	require.NoError(t, err)

	_, err = v.VerifyRegistration(challenge, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOriginMismatch)
}

func TestVerifyRegistration_RelyingPartyMismatch(t *testing.T) {
	v := newTestVerifier(t)
	auth, err := NewMockAuthenticator("other.example.org")
	require.NoError(t, err)
	challenge := testChallenge("rp")

	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(challenge, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRelyingPartyMismatch)
}

func TestVerifyRegistration_UserNotPresent(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t, WithUserPresent(false))
	challenge := testChallenge("up")

	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(challenge, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotPresent)
}

func TestVerifyRegistration_UserVerificationRequired(t *testing.T) {
	cfg := &Config{
		RPID:             testRPID,
		RPDisplayName:    "Example",
		RPOrigins:        []string{testOrigin},
		UserVerification: "required",
	}
	cfg.SetDefaults()
	v := NewVerifier(cfg)

	auth := newTestAuthenticator(t, WithUserVerified(false))
	challenge := testChallenge("uv")

	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)

	_, err = v.VerifyRegistration(challenge, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotVerified)
	assert.NotErrorIs(t, err, ErrUserNotPresent)
}

func TestVerifyRegistration_WrongCeremonyType(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	challenge := testChallenge("type")

	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)
	response.Response.CollectedClientData.Type = "webauthn.get"

	_, err = v.VerifyRegistration(challenge, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerifyRegistration_NoneWithStatement(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	challenge := testChallenge("stmt")

	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)
	response.Response.AttestationObject.AttStatement = map[string]interface{}{
		"sig": []byte{1, 2, 3},
	}

	_, err = v.VerifyRegistration(challenge, response)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVerifyAuthentication(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	regChallenge := testChallenge("reg")

	regResponse, err := auth.CreateAttestationResponse(regChallenge, testOrigin)
	require.NoError(t, err)
	cred, err := v.VerifyRegistration(regChallenge, regResponse)
	require.NoError(t, err)

	authChallenge := testChallenge("auth")
	assertion, err := auth.CreateAssertionResponse(authChallenge, testOrigin, nil)
	require.NoError(t, err)

	newCount, err := v.VerifyAuthentication(authChallenge, cred, assertion)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), newCount)
}

func TestVerifyAuthentication_TamperedSignature(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	cred := registerCredential(t, v, auth)

	challenge := testChallenge("auth")
	assertion, err := auth.CreateAssertionResponse(challenge, testOrigin, nil)
	require.NoError(t, err)
	assertion.Response.Signature[len(assertion.Response.Signature)-1] ^= 0xff

	_, err = v.VerifyAuthentication(challenge, cred, assertion)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifyAuthentication_ChallengeMismatch(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	cred := registerCredential(t, v, auth)

	assertion, err := auth.CreateAssertionResponse(testChallenge("signed"), testOrigin, nil)
	require.NoError(t, err)

	_, err = v.VerifyAuthentication(testChallenge("expected"), cred, assertion)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}

func TestVerifyAuthentication_WrongCredential(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	cred := registerCredential(t, v, auth)

	other := newTestAuthenticator(t)
	challenge := testChallenge("other")
	assertion, err := other.CreateAssertionResponse(challenge, testOrigin, nil)
	require.NoError(t, err)

	_, err = v.VerifyAuthentication(challenge, cred, assertion)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestVerifyAuthentication_CounterRegression(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	cred := registerCredential(t, v, auth)

	// Advance the stored counter past what the authenticator will report.
	cred.SignCount = 5
	auth.SetSignCount(3) // assertion reports 4

	challenge := testChallenge("clone")
	assertion, err := auth.CreateAssertionResponse(challenge, testOrigin, nil)
	require.NoError(t, err)

	_, err = v.VerifyAuthentication(challenge, cred, assertion)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCounterRegressed)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerifyAuthentication_CounterEqualRejected(t *testing.T) {
	v := newTestVerifier(t)
	auth := newTestAuthenticator(t)
	cred := registerCredential(t, v, auth)

	cred.SignCount = 5
	auth.SetSignCount(4) // assertion reports exactly 5

	challenge := testChallenge("equal")
	assertion, err := auth.CreateAssertionResponse(challenge, testOrigin, nil)
	require.NoError(t, err)

	_, err = v.VerifyAuthentication(challenge, cred, assertion)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCounterRegressed)
}

func TestCheckCounter(t *testing.T) {
	tests := []struct {
		name     string
		stored   uint32
		reported uint32
		want     uint32
		wantErr  bool
	}{
		{"both zero counterless", 0, 0, 0, false},
		{"first use", 0, 1, 1, false},
		{"normal advance", 5, 6, 6, false},
		{"large jump", 5, 100, 100, false},
		{"equal rejected", 5, 5, 0, true},
		{"regression rejected", 5, 4, 0, true},
		{"zero after nonzero rejected", 5, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checkCounter(tt.stored, tt.reported)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrCounterRegressed)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func registerCredential(t *testing.T, v *Verifier, auth *MockAuthenticator) *Credential {
	t.Helper()
	challenge := testChallenge("setup")
	response, err := auth.CreateAttestationResponse(challenge, testOrigin)
	require.NoError(t, err)
	cred, err := v.VerifyRegistration(challenge, response)
	require.NoError(t, err)
	return cred
}
