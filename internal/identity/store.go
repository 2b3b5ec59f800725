package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
	"github.com/Nasapan23/undetected-scrape-api/internal/config"
)

// Store keeps fingerprint profiles on disk, one JSON document per profile,
// with an in-memory index guarded by a RWMutex. Disk writes happen inside the
// lock so concurrent GetOrCreate calls cannot interleave a read-modify-write.
type Store struct {
	mu   sync.RWMutex
	dir  string
	gen  *Generator
	log  *zap.Logger
	idx  map[string]*schemas.FingerprintProfile
	now  func() time.Time
}

// NewStore loads any existing profiles from cfg.ProfilesDir, creating the
// directory if it does not exist. Unreadable profile files are skipped with a
// warning rather than failing startup.
func NewStore(cfg config.IdentityConfig, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.ProfilesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating profiles dir %s: %w", cfg.ProfilesDir, err)
	}

	s := &Store{
		dir: cfg.ProfilesDir,
		gen: NewGenerator(cfg.Seed),
		log: logger.Named("identity"),
		idx: make(map[string]*schemas.FingerprintProfile),
		now: time.Now,
	}

	entries, err := os.ReadDir(cfg.ProfilesDir)
	if err != nil {
		return nil, fmt.Errorf("reading profiles dir %s: %w", cfg.ProfilesDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(cfg.ProfilesDir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("Skipping unreadable profile file", zap.String("path", path), zap.Error(err))
			continue
		}
		var profile schemas.FingerprintProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			s.log.Warn("Skipping corrupt profile file", zap.String("path", path), zap.Error(err))
			continue
		}
		if profile.ID == "" {
			s.log.Warn("Skipping profile file without an id", zap.String("path", path))
			continue
		}
		s.idx[profile.ID] = &profile
	}

	s.log.Info("Identity store loaded", zap.Int("profiles", len(s.idx)))
	return s, nil
}

// Get returns the profile with the given id or schemas.ErrProfileNotFound.
func (s *Store) Get(ctx context.Context, id string) (*schemas.FingerprintProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.idx[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, schemas.ErrProfileNotFound)
	}
	cp := *profile
	return &cp, nil
}

// GetOrCreate resolves the profile for a scrape. A non-empty id must already
// exist. With an empty id, a fresh profile is generated under the given
// constraints, persisted, and returned. Either path stamps LastUsedAt.
func (s *Store) GetOrCreate(ctx context.Context, id, browserType, osType, deviceType string) (*schemas.FingerprintProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		profile, ok := s.idx[id]
		if !ok {
			return nil, fmt.Errorf("profile %s: %w", id, schemas.ErrProfileNotFound)
		}
		profile.LastUsedAt = s.now().UTC()
		if err := s.persistLocked(profile); err != nil {
			return nil, err
		}
		cp := *profile
		return &cp, nil
	}

	profile, err := s.gen.Generate(browserType, osType, deviceType)
	if err != nil {
		return nil, err
	}
	// IDs collide only if the generator is reseeded identically across runs
	// against the same directory; regenerate until unique.
	for _, exists := s.idx[profile.ID]; exists; _, exists = s.idx[profile.ID] {
		profile.ID = s.gen.profileID()
	}
	profile.LastUsedAt = s.now().UTC()
	s.idx[profile.ID] = profile
	if err := s.persistLocked(profile); err != nil {
		delete(s.idx, profile.ID)
		return nil, err
	}
	s.log.Debug("Generated fingerprint profile",
		zap.String("profile_id", profile.ID),
		zap.String("browser", profile.Browser.Type),
		zap.String("os", profile.OS.Type),
		zap.String("device", profile.Device.Type),
	)
	cp := *profile
	return &cp, nil
}

// List returns summaries of all stored profiles, newest first.
func (s *Store) List(ctx context.Context) ([]schemas.ProfileSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]schemas.ProfileSummary, 0, len(s.idx))
	for _, p := range s.idx {
		summaries = append(summaries, schemas.ProfileSummary{
			ID:          p.ID,
			Name:        p.Name,
			BrowserType: p.Browser.Type,
			OSType:      p.OS.Type,
			DeviceType:  p.Device.Type,
			CreatedAt:   p.CreatedAt,
			LastUsedAt:  p.LastUsedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Delete removes a profile from the index and from disk.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.idx[id]; !ok {
		return fmt.Errorf("profile %s: %w", id, schemas.ErrProfileNotFound)
	}
	delete(s.idx, id)
	if err := os.Remove(s.profilePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing profile %s: %w", id, err)
	}
	return nil
}

func (s *Store) profilePath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) persistLocked(profile *schemas.FingerprintProfile) error {
	raw, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", profile.ID, err)
	}
	if err := os.WriteFile(s.profilePath(profile.ID), raw, 0o644); err != nil {
		return fmt.Errorf("writing profile %s: %w", profile.ID, err)
	}
	return nil
}
