package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/helper"
)

// Store keeps one Session per browser and evicts the idle ones
type Store struct {
	cfg      *config.Config
	embedder embeddings.Embedder
	llm      llms.Model
	newIndex IndexFactory
	ttl      time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(cfg *config.Config, embedder embeddings.Embedder, llm llms.Model, newIndex IndexFactory) *Store {
	return &Store{
		cfg:      cfg,
		embedder: embedder,
		llm:      llm,
		newIndex: newIndex,
		ttl:      cfg.Server.SessionTTL,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for id, creating a new one when id is empty or
// unknown. The returned session's ID may differ from id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok && id != "" {
		s.touch()
		return s, nil
	}

	newID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	s, err := New(newID, st.cfg, st.embedder, st.llm, st.newIndex)
	if err != nil {
		return nil, err
	}
	st.sessions[newID] = s
	log.Debug().Str("session", newID).Msg("Created session")
	return s, nil
}

// Delete closes and forgets the session; unknown ids are ignored
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep closes sessions idle since before now minus the TTL and returns how
// many were evicted. A zero TTL keeps sessions forever.
func (st *Store) Sweep(now time.Time) int {
	if st.ttl <= 0 {
		return 0
	}

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		if now.Sub(s.LastUsed()) > st.ttl {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("Error closing expired session")
		}
	}
	if len(expired) > 0 {
		log.Info().Int("evicted", len(expired)).Msg("Swept idle sessions")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done
func (st *Store) Run(ctx context.Context) {
	if st.ttl <= 0 {
		return
	}
	interval := st.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			st.Sweep(now)
		}
	}
}

// Close closes every session
func (st *Store) Close() error {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
