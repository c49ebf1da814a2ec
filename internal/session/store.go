// Package session holds the client's notion of who is acting: the signed-in
// identity, its bearer token and whether restoration from durable storage has
// finished.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Storage keys shared with the payment handshake.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// Identity is the signed-in account as cached locally.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// State is a point-in-time copy of the session.
type State struct {
	Identity      *Identity
	Authenticated bool
	Initialized   bool
}

// Store owns the session lifecycle: Initialize, read, SignIn/SetIdentity,
// Logout. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	storage  Storage
	log      zerolog.Logger
	identity *Identity
	token    string
	authed   bool
	inited   bool
}

// NewStore builds an uninitialized store over storage.
func NewStore(storage Storage, log zerolog.Logger) *Store {
	return &Store{storage: storage, log: log}
}

// Storage exposes the backing storage so sibling flows can keep markers
// next to the credential.
func (s *Store) Storage() Storage { return s.storage }

// Initialize restores identity and token from storage. It is idempotent and
// always completes: unreadable or corrupt data counts as no session.
func (s *Store) Initialize(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inited {
		return s.stateLocked()
	}
	s.inited = true

	id, token, err := s.restore(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("session restore failed, continuing signed out")
		return s.stateLocked()
	}
	if id == nil {
		s.log.Debug().Msg("no stored session")
		return s.stateLocked()
	}
	s.identity = id
	s.token = token
	s.authed = true
	s.log.Info().Str("email", id.Email).Msg("session restored")
	return s.stateLocked()
}

func (s *Store) restore(ctx context.Context) (*Identity, string, error) {
	token, ok, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		return nil, "", fmt.Errorf("read token: %w", err)
	}
	raw, okUser, err := s.storage.Get(ctx, UserKey)
	if err != nil {
		return nil, "", fmt.Errorf("read user: %w", err)
	}
	if !ok || !okUser || token == "" {
		return nil, "", nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, "", fmt.Errorf("decode user: %w", err)
	}
	if id.ID == "" {
		return nil, "", errors.New("stored user has no id")
	}
	return &id, token, nil
}

// SignIn persists token and identity and marks the session authenticated.
func (s *Store) SignIn(ctx context.Context, token string, id Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Set(ctx, UserKey, string(raw)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	if err := s.storage.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	cp := id
	s.identity = &cp
	s.token = token
	s.authed = true
	s.inited = true
	return nil
}

// SetIdentity replaces the current identity. A non-nil identity is persisted
// alongside the token; nil signs the session out exactly like Logout, so no
// bearer outlives the identity.
func (s *Store) SetIdentity(ctx context.Context, id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == nil {
		return s.clearLocked(ctx)
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.storage.Set(ctx, UserKey, string(raw)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	cp := *id
	s.identity = &cp
	s.authed = true
	return nil
}

// Logout removes the persisted credential and identity in one storage call,
// then clears memory. If storage fails the session is left untouched.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.identity = nil
	s.token = ""
	s.authed = false
	s.inited = true
	return nil
}

// Token returns the bearer credential, if any.
func (s *Store) Token(_ context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// State returns a copy of the session state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	st := State{Authenticated: s.authed, Initialized: s.inited}
	if s.identity != nil {
		cp := *s.identity
		st.Identity = &cp
	}
	return st
}

// UserID returns the signed-in user's id or "".
func (s State) UserID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}
