package relay

import "sync"

// Session is the per-process record of the joined identity and the highest
// message id already delivered to the caller. It is not persisted: a restart
// starts over at offset 0 and the next drain replays the full backlog.
type Session struct {
	mu       sync.RWMutex
	username string
	offset   int64
}

// Activate binds the session to username and rewinds the cursor, a rejoin
// always replays from the start of the feed.
func (s *Session) Activate(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.username = username
	s.offset = 0
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.username = ""
	s.offset = 0
}

// Active returns the joined username, if any.
func (s *Session) Active() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.username, s.username != ""
}

func (s *Session) Offset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.offset
}

// Advance moves the cursor forward. Lower offsets are ignored so the cursor
// never regresses.
func (s *Session) Advance(offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset > s.offset {
		s.offset = offset
	}
}
