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
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Issuer mints fresh challenges and the client-facing ceremony options
// that carry them. Each call produces a new cryptographically random
// challenge; challenges are never derived from identity or time.
type Issuer struct {
	webauthn *webauthn.WebAuthn
	config   *Config
}

// NewIssuer creates an Issuer from a validated configuration.
func NewIssuer(config *Config) (*Issuer, error) {
	wa, err := webauthn.New(config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}
	return &Issuer{webauthn: wa, config: config}, nil
}

// RegistrationOptions generates credential creation options for the
// identity with a fresh challenge. Already registered credentials are
// listed for exclusion so the client will not re-enroll them. Returns
// the options and the base64url challenge they embed.
func (i *Issuer) RegistrationOptions(identity *Identity) (*protocol.CredentialCreation, string, error) {
	excludeList := make([]protocol.CredentialDescriptor, len(identity.Credentials))
	for n, cred := range identity.Credentials {
		excludeList[n] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
			Transport:    cred.Transport,
		}
	}

	options, session, err := i.webauthn.BeginRegistration(identity,
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		return nil, "", WrapError("registration options", err)
	}

	return options, session.Challenge, nil
}

// AuthenticationOptions generates credential request options for the
// identity with a fresh challenge. The identity must have at least one
// registered credential.
func (i *Issuer) AuthenticationOptions(identity *Identity) (*protocol.CredentialAssertion, string, error) {
	if len(identity.Credentials) == 0 {
		return nil, "", ErrNoCredentials
	}

	options, session, err := i.webauthn.BeginLogin(identity)
	if err != nil {
		return nil, "", WrapError("authentication options", err)
	}

	return options, session.Challenge, nil
}
