package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/backkem/doorlock/pkg/credential"
)

// CapabilitiesConfig is the YAML form of credential.Capabilities. User types,
// credential rules and credential types are given by name.
type CapabilitiesConfig struct {
	MaxUsers        uint16   `yaml:"max_users"`
	MaxNameLength   uint8    `yaml:"max_name_length"`
	UserTypes       []string `yaml:"user_types"`
	CredentialRules []string `yaml:"credential_rules"`

	AllUsersChecksum   bool `yaml:"all_users_checksum"`
	UserChecksum       bool `yaml:"user_checksum"`
	CredentialChecksum bool `yaml:"credential_checksum"`

	AdminCode             bool `yaml:"admin_code"`
	AdminCodeDeactivation bool `yaml:"admin_code_deactivation"`

	MaxCredentials uint16                 `yaml:"max_credentials"`
	Credentials    []CredentialTypeConfig `yaml:"credentials"`
}

// CredentialTypeConfig bounds one credential type.
type CredentialTypeConfig struct {
	Type          string `yaml:"type"`
	Slots         uint16 `yaml:"slots"`
	MinLength     uint8  `yaml:"min_length"`
	MaxLength     uint8  `yaml:"max_length"`
	Learn         bool   `yaml:"learn"`
	LearnTimeout  uint8  `yaml:"learn_timeout"`
	LearnSteps    uint8  `yaml:"learn_steps"`
	ReadBack      bool   `yaml:"read_back"`
	MaxHashLength uint8  `yaml:"max_hash_length"`
}

// DefaultCapabilities mirrors credential.DefaultCapabilities.
func DefaultCapabilities() CapabilitiesConfig {
	caps := credential.DefaultCapabilities()
	cc := CapabilitiesConfig{
		MaxUsers:              caps.MaxUsers,
		MaxNameLength:         caps.MaxNameLength,
		AllUsersChecksum:      caps.AllUsersChecksum,
		UserChecksum:          caps.UserChecksum,
		CredentialChecksum:    caps.CredentialChecksum,
		AdminCode:             caps.AdminCode,
		AdminCodeDeactivation: caps.AdminCodeDeactivation,
		MaxCredentials:        caps.MaxCredentials,
	}
	for _, t := range caps.UserTypes {
		cc.UserTypes = append(cc.UserTypes, t.String())
	}
	for _, r := range caps.CredentialRules {
		cc.CredentialRules = append(cc.CredentialRules, r.String())
	}
	for _, tc := range caps.Credentials {
		cc.Credentials = append(cc.Credentials, CredentialTypeConfig{
			Type:          tc.Type.String(),
			Slots:         tc.Slots,
			MinLength:     tc.MinLength,
			MaxLength:     tc.MaxLength,
			Learn:         tc.LearnSupported,
			LearnTimeout:  tc.LearnTimeout,
			LearnSteps:    tc.LearnSteps,
			ReadBack:      tc.ReadBack,
			MaxHashLength: tc.MaxHashLength,
		})
	}
	return cc
}

// Build converts the configuration into credential.Capabilities.
func (c CapabilitiesConfig) Build() (credential.Capabilities, error) {
	caps := credential.Capabilities{
		MaxUsers:              c.MaxUsers,
		MaxNameLength:         c.MaxNameLength,
		AllUsersChecksum:      c.AllUsersChecksum,
		UserChecksum:          c.UserChecksum,
		CredentialChecksum:    c.CredentialChecksum,
		AdminCode:             c.AdminCode,
		AdminCodeDeactivation: c.AdminCodeDeactivation,
		MaxCredentials:        c.MaxCredentials,
	}
	var errs []error

	if c.MaxUsers == 0 {
		errs = append(errs, errors.New("capabilities.max_users must be positive"))
	}
	if len(c.UserTypes) == 0 {
		errs = append(errs, errors.New("capabilities.user_types must not be empty"))
	}
	for _, name := range c.UserTypes {
		t, err := ParseUserType(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		caps.UserTypes = append(caps.UserTypes, t)
	}
	if len(c.CredentialRules) == 0 {
		errs = append(errs, errors.New("capabilities.credential_rules must not be empty"))
	}
	for _, name := range c.CredentialRules {
		r, err := ParseCredentialRule(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		caps.CredentialRules = append(caps.CredentialRules, r)
	}

	seen := make(map[credential.CredentialType]bool)
	for _, tc := range c.Credentials {
		t, err := ParseCredentialType(tc.Type)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[t] {
			errs = append(errs, fmt.Errorf("capabilities.credentials: %s listed twice", t))
			continue
		}
		seen[t] = true
		if tc.Slots == 0 {
			errs = append(errs, fmt.Errorf("capabilities.credentials: %s needs at least one slot", t))
		}
		if tc.MinLength == 0 || tc.MinLength > tc.MaxLength {
			errs = append(errs, fmt.Errorf("capabilities.credentials: %s length bounds %d..%d are invalid",
				t, tc.MinLength, tc.MaxLength))
		}
		if tc.Learn && tc.LearnSteps == 0 {
			errs = append(errs, fmt.Errorf("capabilities.credentials: %s learn needs learn_steps", t))
		}
		caps.Credentials = append(caps.Credentials, credential.TypeCapabilities{
			Type:           t,
			Slots:          tc.Slots,
			MinLength:      tc.MinLength,
			MaxLength:      tc.MaxLength,
			LearnSupported: tc.Learn,
			LearnTimeout:   tc.LearnTimeout,
			LearnSteps:     tc.LearnSteps,
			ReadBack:       tc.ReadBack,
			MaxHashLength:  tc.MaxHashLength,
		})
	}

	if err := errors.Join(errs...); err != nil {
		return credential.Capabilities{}, err
	}
	caps.Normalize()
	return caps, nil
}

// ParseUserType resolves a user type by name, ignoring case.
func ParseUserType(name string) (credential.UserType, error) {
	for _, t := range credential.AllUserTypes {
		if strings.EqualFold(t.String(), name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown user type %q", name)
}

// ParseCredentialRule resolves a credential rule by name, ignoring case.
func ParseCredentialRule(name string) (credential.CredentialRule, error) {
	for r := credential.CredentialRuleSingle; r <= credential.CredentialRuleTriple; r++ {
		if strings.EqualFold(r.String(), name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown credential rule %q", name)
}

// ParseCredentialType resolves a credential type by name, ignoring case.
// The None type is not accepted.
func ParseCredentialType(name string) (credential.CredentialType, error) {
	for t := credential.CredentialTypePINCode; t <= credential.MaxCredentialType; t++ {
		if strings.EqualFold(t.String(), name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown credential type %q", name)
}
