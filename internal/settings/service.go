package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// sentinel errors for common failure modes
var (
	ErrNotFound        = errors.New("section not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrUnknownSection  = errors.New("unknown section")
)

// Store captures section persistence.
type Store interface {
	Get(ctx context.Context, name string) (*Section, error)
	Upsert(ctx context.Context, s *Section, expectedVersion int64) (int64, error)
}

// Service encapsulates system settings reads and versioned writes.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Document assembles the full GET /systemsettings body. Sections never saved
// are omitted; the console renders those as "not set up".
func (s *Service) Document(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	for name, key := range map[string]string{
		SectionSMTP:   "smtpConfig",
		SectionTeams:  "teamsConfig",
		SectionSlack:  "slackConfig",
		SectionPortal: "portalConfig",
	} {
		sec, err := s.store.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if sec == nil {
			continue
		}
		payload, err := sec.Payload()
		if err != nil {
			return nil, err
		}
		out[key] = payload
	}
	return out, nil
}

// SMTP returns the decoded SMTP section, or ErrNotFound when unconfigured.
func (s *Service) SMTP(ctx context.Context) (*SMTPConfig, error) {
	sec, err := s.store.Get(ctx, SectionSMTP)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, ErrNotFound
	}
	var cfg SMTPConfig
	if err := json.Unmarshal(sec.Config, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Portal returns the decoded portal section, or ErrNotFound when unconfigured.
func (s *Service) Portal(ctx context.Context) (*PortalConfig, error) {
	sec, err := s.store.Get(ctx, SectionPortal)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, ErrNotFound
	}
	var cfg PortalConfig
	if err := json.Unmarshal(sec.Config, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save validates the section payload and writes it with optimistic locking.
// expectedVersion 0 means "whatever is current" for clients that do not carry
// the version through the form round-trip.
func (s *Service) Save(ctx context.Context, name string, payload json.RawMessage, expectedVersion int64) (*Section, error) {
	cleaned, err := normalize(name, payload)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	current := int64(0)
	if existing != nil {
		current = existing.Version
	}
	if expectedVersion == 0 {
		expectedVersion = current
	}
	if expectedVersion != current {
		return nil, ErrVersionConflict
	}

	sec := &Section{
		Name:      name,
		Config:    cleaned,
		Version:   current + 1,
		UpdatedAt: time.Now().UTC(),
	}
	rows, err := s.store.Upsert(ctx, sec, current)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// lost the race between Get and Upsert
		return nil, ErrVersionConflict
	}
	return sec, nil
}

// normalize round-trips the payload through the section's typed struct so
// unknown fields are dropped and the stored shape stays canonical.
func normalize(name string, payload json.RawMessage) (json.RawMessage, error) {
	var typed any
	switch name {
	case SectionSMTP:
		typed = &SMTPConfig{}
	case SectionTeams:
		typed = &TeamsConfig{}
	case SectionSlack:
		typed = &SlackConfig{}
	case SectionPortal:
		typed = &PortalConfig{}
	default:
		return nil, ErrUnknownSection
	}
	if err := json.Unmarshal(payload, typed); err != nil {
		return nil, err
	}
	return json.Marshal(typed)
}
