package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/your-org/auth-gateway/internal/domain"
)

// seedFile is the YAML shape of a development fixture. Hashes and signing
// secrets are stated explicitly so a fixture never carries plaintext
// passwords.
type seedFile struct {
	Users []struct {
		ID           string   `yaml:"id"`
		Email        string   `yaml:"email"`
		PasswordHash string   `yaml:"password_hash"`
		Permissions  []string `yaml:"permissions"`
	} `yaml:"users"`
	APIKeys []struct {
		ID               string   `yaml:"id"`
		OwnerUserID      string   `yaml:"owner_user_id"`
		KeyValue         string   `yaml:"key_value"`
		SecretForSigning string   `yaml:"secret_for_signing"`
		Permissions      []string `yaml:"permissions"`
	} `yaml:"api_keys"`
}

// LoadSeed reads a YAML fixture and loads it into the store. Meant for
// development and demo setups where no real persistence collaborator exists.
func LoadSeed(path string, s *MemoryStore) (users, keys int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for _, u := range seed.Users {
		if u.ID == "" || u.Email == "" {
			return 0, 0, fmt.Errorf("seed user needs id and email")
		}
		s.PutUser(&domain.User{
			ID:           u.ID,
			Email:        u.Email,
			PasswordHash: u.PasswordHash,
			Permissions:  u.Permissions,
		})
	}
	for _, k := range seed.APIKeys {
		if k.ID == "" || k.KeyValue == "" {
			return 0, 0, fmt.Errorf("seed api key needs id and key_value")
		}
		s.PutAPIKey(&domain.APIKeyRecord{
			ID:               k.ID,
			OwnerUserID:      k.OwnerUserID,
			KeyValue:         k.KeyValue,
			SecretForSigning: k.SecretForSigning,
			Permissions:      k.Permissions,
			IsActive:         true,
		})
	}

	return len(seed.Users), len(seed.APIKeys), nil
}
