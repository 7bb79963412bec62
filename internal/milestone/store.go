package milestone

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"communitysite/internal/kv"
	"communitysite/internal/logger"
)

const (
	KeyUnlocked = "milestones"
	KeyUserID   = "user_id"
)

// Store reads and writes one visitor's unlocked token set.
type Store struct {
	kv  kv.Store
	log *logger.Logger
}

func NewStore(backing kv.Store, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{kv: backing, log: log}
}

// GetUnlocked never fails: missing, malformed or unreadable data is an empty set.
func (s *Store) GetUnlocked(ctx context.Context) []string {
	raw, ok, err := s.kv.Get(ctx, KeyUnlocked)
	if err != nil {
		s.log.Warn("read unlocked milestones", "error", err)
		return []string{}
	}
	return s.decode(raw, ok)
}

func (s *Store) decode(raw string, ok bool) []string {
	if !ok || raw == "" {
		return []string{}
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		s.log.Warn("malformed unlocked milestones", "error", err)
		return []string{}
	}
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// AddUnlocked appends token unless it is already stored. The read and the
// write are one atomic step of the backing store, so writers on other
// instances cannot drop each other's tokens. It returns whether token was
// added and the set as stored afterwards.
func (s *Store) AddUnlocked(ctx context.Context, token string) (bool, []string, error) {
	var (
		added  bool
		tokens []string
	)
	err := s.kv.Update(ctx, KeyUnlocked, func(raw string, ok bool) (string, error) {
		tokens = s.decode(raw, ok)
		if slices.Contains(tokens, token) {
			added = false
			return "", kv.ErrNoChange
		}
		tokens = append(tokens, token)
		added = true
		out, err := json.Marshal(tokens)
		return string(out), err
	})
	if err != nil {
		return false, nil, err
	}
	return added, tokens, nil
}

func (s *Store) SetUnlocked(ctx context.Context, tokens []string) error {
	if tokens == nil {
		tokens = []string{}
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, KeyUnlocked, string(raw))
}

func (s *Store) GetLinkedUserID(ctx context.Context) (string, bool) {
	raw, ok, err := s.kv.Get(ctx, KeyUserID)
	if err != nil {
		s.log.Warn("read linked user", "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	userID := strings.TrimSpace(raw)
	return userID, userID != ""
}

func (s *Store) SetLinkedUserID(ctx context.Context, userID string) error {
	return s.kv.Set(ctx, KeyUserID, strings.TrimSpace(userID))
}
