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
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing RPID",
			config:  Config{RPDisplayName: "Example", RPOrigins: []string{"https://example.com"}},
			wantErr: "RPID is required",
		},
		{
			name:    "missing display name",
			config:  Config{RPID: "example.com", RPOrigins: []string{"https://example.com"}},
			wantErr: "RPDisplayName is required",
		},
		{
			name:    "missing origins",
			config:  Config{RPID: "example.com", RPDisplayName: "Example"},
			wantErr: "at least one RPOrigin is required",
		},
		{
			name: "negative challenge TTL",
			config: Config{
				RPID:          "example.com",
				RPDisplayName: "Example",
				RPOrigins:     []string{"https://example.com"},
				ChallengeTTL:  -time.Second,
			},
			wantErr: "challenge TTL must not be negative",
		},
		{
			name: "invalid user verification",
			config: Config{
				RPID:             "example.com",
				RPDisplayName:    "Example",
				RPOrigins:        []string{"https://example.com"},
				UserVerification: "always",
			},
			wantErr: "invalid user verification",
		},
		{
			name: "invalid attestation preference",
			config: Config{
				RPID:                  "example.com",
				RPDisplayName:         "Example",
				RPOrigins:             []string{"https://example.com"},
				AttestationPreference: "full",
			},
			wantErr: "invalid attestation preference",
		},
		{
			name: "invalid resident key requirement",
			config: Config{
				RPID:                   "example.com",
				RPDisplayName:          "Example",
				RPOrigins:              []string{"https://example.com"},
				ResidentKeyRequirement: "maybe",
			},
			wantErr: "invalid resident key requirement",
		},
		{
			name: "invalid authenticator attachment",
			config: Config{
				RPID:                    "example.com",
				RPDisplayName:           "Example",
				RPOrigins:               []string{"https://example.com"},
				AuthenticatorAttachment: "usb",
			},
			wantErr: "invalid authenticator attachment",
		},
		{
			name: "valid minimal",
			config: Config{
				RPID:          "example.com",
				RPDisplayName: "Example",
				RPOrigins:     []string{"https://example.com"},
			},
		},
		{
			name: "valid full",
			config: Config{
				RPID:                    "example.com",
				RPDisplayName:           "Example",
				RPOrigins:               []string{"https://example.com", "https://www.example.com"},
				Timeout:                 30 * time.Second,
				ChallengeTTL:            time.Minute,
				UserVerification:        "required",
				AttestationPreference:   "direct",
				ResidentKeyRequirement:  "required",
				AuthenticatorAttachment: "platform",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{
		RPID:          "example.com",
		RPDisplayName: "Example",
		RPOrigins:     []string{"https://example.com"},
	}
	cfg.SetDefaults()

	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "preferred", cfg.UserVerification)
	assert.Equal(t, "none", cfg.AttestationPreference)
	assert.Equal(t, "preferred", cfg.ResidentKeyRequirement)
}

func TestConfig_SetDefaults_PreservesExplicit(t *testing.T) {
	cfg := &Config{
		RPID:             "example.com",
		RPDisplayName:    "Example",
		RPOrigins:        []string{"https://example.com"},
		Timeout:          10 * time.Second,
		ChallengeTTL:     30 * time.Second,
		UserVerification: "required",
	}
	cfg.SetDefaults()

	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 30*time.Second, cfg.ChallengeTTL)
	assert.Equal(t, "required", cfg.UserVerification)
}

func TestConfig_ToWebAuthnConfig(t *testing.T) {
	cfg := &Config{
		RPID:                    "example.com",
		RPDisplayName:           "Example",
		RPOrigins:               []string{"https://example.com"},
		Timeout:                 45 * time.Second,
		UserVerification:        "required",
		AttestationPreference:   "direct",
		ResidentKeyRequirement:  "required",
		AuthenticatorAttachment: "platform",
	}

	wcfg := cfg.ToWebAuthnConfig()

	assert.Equal(t, "example.com", wcfg.RPID)
	assert.Equal(t, "Example", wcfg.RPDisplayName)
	assert.Equal(t, []string{"https://example.com"}, wcfg.RPOrigins)
	assert.True(t, wcfg.Timeouts.Registration.Enforce)
	assert.Equal(t, 45*time.Second, wcfg.Timeouts.Registration.Timeout)
	assert.Equal(t, 45*time.Second, wcfg.Timeouts.Login.Timeout)
	assert.Equal(t, protocol.PreferDirectAttestation, wcfg.AttestationPreference)
	assert.Equal(t, protocol.VerificationRequired, wcfg.AuthenticatorSelection.UserVerification)
	assert.Equal(t, protocol.ResidentKeyRequirementRequired, wcfg.AuthenticatorSelection.ResidentKey)
	assert.Equal(t, protocol.Platform, wcfg.AuthenticatorSelection.AuthenticatorAttachment)
}
