package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout of a profile seed file:
//
//	profiles:
//	  - user_id: demo
//	    name: Demo Patient
//	    email: demo@example.com
//	    safety_flags:
//	      allergies: [ibuprofen]
type SeedFile struct {
	Profiles []SeedProfile `yaml:"profiles"`
}

// SeedProfile is one entry of a seed file.
type SeedProfile struct {
	UserID      string              `yaml:"user_id"`
	Name        string              `yaml:"name"`
	Email       string              `yaml:"email"`
	SafetyFlags map[string][]string `yaml:"safety_flags"`
}

// LoadSeedFile parses the seed file at path.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i, p := range seed.Profiles {
		if p.UserID == "" {
			return nil, fmt.Errorf("seed profile #%d has no user_id", i+1)
		}
	}

	return &seed, nil
}

// SeedProfiles upserts every profile of the seed file at path into store.
// An empty path is a no-op.
func SeedProfiles(ctx context.Context, store Store, path string, log *slog.Logger) error {
	if path == "" {
		return nil
	}

	seed, err := LoadSeedFile(path)
	if err != nil {
		return err
	}

	for _, p := range seed.Profiles {
		profile := &UserProfile{
			UserID:      p.UserID,
			DisplayName: p.Name,
			Email:       p.Email,
			SafetyFlags: p.SafetyFlags,
		}
		if err := store.SaveUserProfile(ctx, profile); err != nil {
			return fmt.Errorf("failed to seed profile %q: %w", p.UserID, err)
		}
	}

	log.Info("Seeded user profiles", "path", path, "count", len(seed.Profiles))
	return nil
}
