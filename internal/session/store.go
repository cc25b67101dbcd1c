package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerdneilsfield/telegram-style-bot/internal/style"
)

// State is the position of a user's session in the prompt/generate cycle.
type State int

const (
	// StateNone is never stored; it is what Get reports for absent users.
	StateNone State = iota
	StateAwaitingStyleChoice
	StateGenerating
)

func (s State) String() string {
	switch s {
	case StateAwaitingStyleChoice:
		return "awaiting_style_choice"
	case StateGenerating:
		return "generating"
	default:
		return "none"
	}
}

// Direction moves the carousel one step.
type Direction int

const (
	Prev Direction = -1
	Next Direction = 1
)

var ErrNoSession = errors.New("no active session")

// ErrInvalidTransition is returned when a generation is requested from a state that cannot start one.
var ErrInvalidTransition = errors.New("invalid session transition")

// Session is a snapshot of one user's carousel state.
type Session struct {
	UserID     int64
	Prompt     string
	StyleIndex int
	State      State
	UpdatedAt  time.Time

	// CarouselChatID and CarouselMessageID locate the message that shows this
	// session's carousel. Zero until AttachCarousel is called.
	CarouselChatID    int64
	CarouselMessageID int

	// Generation identifies the running generation; set by BeginGeneration.
	Generation uint64
}

// ShowsCarousel reports whether the message chatID/messageID is this session's carousel.
func (s Session) ShowsCarousel(chatID int64, messageID int) bool {
	return s.CarouselMessageID != 0 && s.CarouselChatID == chatID && s.CarouselMessageID == messageID
}

// Store holds per-user sessions. Implementations must serialize access per user
// without blocking other users.
type Store interface {
	StartPrompt(userID int64, prompt string) Session
	Get(userID int64) (Session, bool)
	AttachCarousel(userID, chatID int64, messageID int) bool
	Advance(userID int64, dir Direction) (Session, bool)
	BeginGeneration(userID int64) (Session, error)
	FinishGeneration(userID int64, generation uint64)
	Clear(userID int64)
	Sweep(now time.Time) int
	Len() int
}

type entry struct {
	mu      sync.Mutex
	session Session
	removed bool
}

// MemoryStore is the in-process Store. A zero ttl keeps sessions forever.
type MemoryStore struct {
	styleCount int
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex // guards entries; taken before entry.mu, never after
	entries map[int64]*entry

	generations atomic.Uint64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store for a carousel of styleCount styles.
func NewMemoryStore(styleCount int, ttl time.Duration) *MemoryStore {
	if styleCount < 1 {
		styleCount = 1
	}
	return &MemoryStore{
		styleCount: styleCount,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[int64]*entry),
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) lookup(userID int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[userID]
}

// lockLive returns the user's entry locked, or nil if absent or expired.
func (s *MemoryStore) lockLive(userID int64) *entry {
	for {
		e := s.lookup(userID)
		if e == nil {
			return nil
		}
		e.mu.Lock()
		if e.removed {
			// 条目已被替换或清理，重新查找
			e.mu.Unlock()
			continue
		}
		if s.expired(e.session) {
			e.removed = true
			e.mu.Unlock()
			s.remove(userID, e)
			return nil
		}
		return e
	}
}

func (s *MemoryStore) remove(userID int64, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[userID] == e {
		delete(s.entries, userID)
	}
}

func (s *MemoryStore) expired(sess Session) bool {
	return s.ttl > 0 && sess.State != StateGenerating && s.now().Sub(sess.UpdatedAt) > s.ttl
}

// StartPrompt replaces the user's session with a fresh one at index 0.
func (s *MemoryStore) StartPrompt(userID int64, prompt string) Session {
	sess := Session{
		UserID:     userID,
		Prompt:     prompt,
		StyleIndex: 0,
		State:      StateAwaitingStyleChoice,
		UpdatedAt:  s.now(),
	}

	if e := s.lockLive(userID); e != nil {
		e.session = sess
		e.mu.Unlock()
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		// Lost a race with another StartPrompt for the same user; last writer wins.
		e.mu.Lock()
		if !e.removed {
			e.session = sess
			e.mu.Unlock()
			return sess
		}
		e.mu.Unlock()
	}
	s.entries[userID] = &entry{session: sess}
	return sess
}

// Get returns a copy of the user's session.
func (s *MemoryStore) Get(userID int64) (Session, bool) {
	e := s.lockLive(userID)
	if e == nil {
		return Session{}, false
	}
	defer e.mu.Unlock()
	return e.session, true
}

// AttachCarousel records which message displays the user's carousel.
func (s *MemoryStore) AttachCarousel(userID, chatID int64, messageID int) bool {
	e := s.lockLive(userID)
	if e == nil {
		return false
	}
	defer e.mu.Unlock()
	e.session.CarouselChatID = chatID
	e.session.CarouselMessageID = messageID
	return true
}

// Advance moves the carousel with wraparound. It does nothing for absent
// sessions or while a generation is running.
func (s *MemoryStore) Advance(userID int64, dir Direction) (Session, bool) {
	e := s.lockLive(userID)
	if e == nil {
		return Session{}, false
	}
	defer e.mu.Unlock()

	if e.session.State != StateAwaitingStyleChoice {
		return e.session, false
	}
	e.session.StyleIndex = style.Wrap(e.session.StyleIndex+int(dir), s.styleCount)
	e.session.UpdatedAt = s.now()
	return e.session, true
}

// BeginGeneration moves the session to StateGenerating and stamps it with a
// store-wide unique generation number.
func (s *MemoryStore) BeginGeneration(userID int64) (Session, error) {
	e := s.lockLive(userID)
	if e == nil {
		return Session{}, ErrNoSession
	}
	defer e.mu.Unlock()

	if e.session.State != StateAwaitingStyleChoice || e.session.Prompt == "" {
		return e.session, ErrInvalidTransition
	}
	e.session.State = StateGenerating
	e.session.Generation = s.generations.Add(1)
	e.session.UpdatedAt = s.now()
	return e.session, nil
}

// FinishGeneration returns the session to the carousel if generation is still
// the one running. Sessions replaced by a new prompt or a newer generation are
// left alone.
func (s *MemoryStore) FinishGeneration(userID int64, generation uint64) {
	e := s.lockLive(userID)
	if e == nil {
		return
	}
	defer e.mu.Unlock()

	if e.session.State == StateGenerating && e.session.Generation == generation {
		e.session.State = StateAwaitingStyleChoice
		e.session.UpdatedAt = s.now()
	}
}

// Clear drops the user's session.
func (s *MemoryStore) Clear(userID int64) {
	e := s.lockLive(userID)
	if e == nil {
		return
	}
	e.removed = true
	e.mu.Unlock()
	s.remove(userID, e)
}

// Sweep evicts expired sessions and returns how many were removed.
// Generating sessions are kept until they finish.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	candidates := make(map[int64]*entry, len(s.entries))
	for id, e := range s.entries {
		candidates[id] = e
	}
	s.mu.Unlock()

	removed := 0
	for id, e := range candidates {
		e.mu.Lock()
		stale := !e.removed && e.session.State != StateGenerating && now.Sub(e.session.UpdatedAt) > s.ttl
		if stale {
			e.removed = true
		}
		e.mu.Unlock()
		if stale {
			s.remove(id, e)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
