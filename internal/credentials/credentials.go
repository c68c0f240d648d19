// Package credentials defines the external credential-store contract the
// core consumes (spec §6): lookup(ownerId, capability) -> Credentials |
// None. Credential lifecycle (signup, login, key rotation, storage,
// encryption at rest) lives outside the core; this package only specifies
// the lookup shape and a static stand-in for local development and tests.
package credentials

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Capability names the four families of adapter the core looks up
// credentials for (spec §6).
type Capability string

const (
	CapabilityText    Capability = "text"
	CapabilityImage   Capability = "image"
	CapabilityVideo   Capability = "video"
	CapabilityCompile Capability = "compile"
)

// Credentials is the value a lookup returns for one (owner, capability)
// pair. Extra carries adapter-specific fields (e.g. a model quality tier)
// without widening this struct per new vendor.
type Credentials struct {
	ProviderTag string // e.g. "openai", "gemini", "xai", "ffmpeg", "none"
	Endpoint    string
	Token       string
	Model       string
	Quality     string
	Extra       map[string]string
}

// ErrNotFound is returned when no credentials are on file for the
// (owner, capability) pair — the caller treats this as
// PermanentProviderError{NoCredentials} per spec §4.5 step 1.
var ErrNotFound = fmt.Errorf("credentials: not found")

// Store is the lookup contract the core calls at each phase entry; it
// never caches across phases (spec §6).
type Store interface {
	Lookup(ctx context.Context, ownerID uuid.UUID, capability Capability) (Credentials, error)
}

// StaticStore is an in-memory Store seeded at construction — a stand-in
// for the real credential-store collaborator (out of scope per spec §1),
// used for local development and in tests.
type StaticStore struct {
	mu    sync.RWMutex
	byKey map[string]Credentials
}

func NewStaticStore() *StaticStore {
	return &StaticStore{byKey: make(map[string]Credentials)}
}

func (s *StaticStore) Set(ownerID uuid.UUID, capability Capability, creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[key(ownerID, capability)] = creds
}

func (s *StaticStore) Lookup(_ context.Context, ownerID uuid.UUID, capability Capability) (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.byKey[key(ownerID, capability)]
	if !ok {
		return Credentials{}, ErrNotFound
	}
	return creds, nil
}

func key(ownerID uuid.UUID, capability Capability) string {
	return ownerID.String() + ":" + string(capability)
}
