package intake

import (
	"sync"
	"time"
)

// Step names the implicit conversation state derived from which session
// fields are populated.
type Step int

const (
	StepLanguage Step = iota
	StepName
	StepPhone
	StepDescription
	StepPhotos
	StepFinished
)

// String implements fmt.Stringer for log output.
func (s Step) String() string {
	switch s {
	case StepLanguage:
		return "language"
	case StepName:
		return "name"
	case StepPhone:
		return "phone"
	case StepDescription:
		return "description"
	case StepPhotos:
		return "photos"
	case StepFinished:
		return "finished"
	}
	return "unknown"
}

// Session holds one user's intake progress. Fields populate strictly in
// order language -> name -> phone -> description -> photos; Finished is
// monotone. All mutation happens inside Machine under the session mutex.
type Session struct {
	mu sync.Mutex

	UserID      int64
	Language    Language
	Name        string
	Phone       string
	Description string
	Photos      []string
	Finished    bool
	FinishedAt  time.Time
}

func (s *Session) language() Language {
	if s.Language == "" {
		return DefaultLanguage
	}
	return s.Language
}

func (s *Session) step() Step {
	switch {
	case s.Finished:
		return StepFinished
	case s.Description != "":
		return StepPhotos
	case s.Phone != "":
		return StepDescription
	case s.Name != "":
		return StepPhone
	case s.Language != "":
		return StepName
	}
	return StepLanguage
}

// Step reports the session's current conversation step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step()
}

func (s *Session) resetLocked() {
	s.Language = ""
	s.Name = ""
	s.Phone = ""
	s.Description = ""
	s.Photos = nil
	s.Finished = false
	s.FinishedAt = time.Time{}
}

// Store maps user identifiers to sessions. The store mutex guards only the
// map; each session carries its own mutex, so operations on different users
// never block one another while same-user operations serialize.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewStore constructs an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

// Get returns the session for a user, creating an empty one if absent.
func (s *Store) Get(userID int64) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess
	}
	sess = &Session{UserID: userID}
	s.sessions[userID] = sess
	return sess
}

// Reset clears the user's session back to empty and returns it. A fresh
// start always wins over unfinished state.
func (s *Store) Reset(userID int64) *Session {
	sess := s.Get(userID)
	sess.mu.Lock()
	sess.resetLocked()
	sess.mu.Unlock()
	return sess
}

// Len reports the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RemoveIfFinishedBefore drops sessions that finished before the cutoff.
// It is the retention extension point for bounding store growth; in-flight
// conversations are never removed.
func (s *Store) RemoveIfFinishedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		expired := sess.Finished && sess.FinishedAt.Before(cutoff)
		sess.mu.Unlock()
		if expired {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
