// Package profile loads and serves user profiles. The store is populated
// once at startup and read-only afterwards, so lookups are safe from any
// goroutine.
package profile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vitalstream/health-ingest/internal/models"
)

var validate = validator.New()

// Store maps user_id to Profile.
type Store struct {
	profiles map[string]models.Profile
}

// Load reads the users.json array at path. An unopenable or unparseable file
// is a fatal error for the whole run. Individual entries that fail
// validation (no user_id) are skipped with a warning; a duplicated user_id
// keeps the last entry, matching load order.
func Load(path string, log *zap.Logger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open user profiles: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn("failed to close user profiles file", zap.Error(closeErr))
		}
	}()

	var profiles []models.Profile
	if err := json.NewDecoder(f).Decode(&profiles); err != nil {
		return nil, fmt.Errorf("failed to parse user profiles: %w", err)
	}

	store := &Store{profiles: make(map[string]models.Profile, len(profiles))}
	for i, p := range profiles {
		if err := validate.Struct(p); err != nil {
			log.Warn("skipping invalid user profile",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		if _, exists := store.profiles[p.UserID]; exists {
			log.Warn("duplicate user profile, keeping latest", zap.String("user_id", p.UserID))
		}
		store.profiles[p.UserID] = p
	}

	log.Info("loaded user profiles", zap.Int("count", len(store.profiles)))
	return store, nil
}

// Lookup returns the profile for userID, if loaded.
func (s *Store) Lookup(userID string) (models.Profile, bool) {
	p, ok := s.profiles[userID]
	return p, ok
}

// Len returns the number of loaded profiles.
func (s *Store) Len() int {
	return len(s.profiles)
}
