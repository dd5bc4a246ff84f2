package bot

import (
	"sync"
	"time"
)

// SessionTTL время, после которого незавершенная сессия считается устаревшей
const SessionTTL = time.Hour

// Session накапливает входные данные генерации для одного чата
type Session struct {
	ChatID       int64
	Image        []byte
	VoiceSample  []byte
	Text         string
	LastActivity time.Time
}

// Ready проверяет, собраны ли все входные данные
func (s *Session) Ready() bool {
	return len(s.Image) > 0 && len(s.VoiceSample) > 0 && s.Text != ""
}

// Missing возвращает список недостающих входных данных
func (s *Session) Missing() []string {
	var missing []string
	if len(s.Image) == 0 {
		missing = append(missing, "фото")
	}
	if len(s.VoiceSample) == 0 {
		missing = append(missing, "образец голоса")
	}
	if s.Text == "" {
		missing = append(missing, "текст")
	}
	return missing
}

// IsStale проверяет, не устарела ли сессия
func (s *Session) IsStale(now time.Time) bool {
	return now.Sub(s.LastActivity) > SessionTTL
}

// SessionStore хранит сессии по chat_id
type SessionStore struct {
	sessions map[int64]*Session
	mutex    sync.Mutex
	now      func() time.Time
}

// NewSessionStore создает новое хранилище сессий
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Update применяет изменение к сессии чата и возвращает ее копию.
// Устаревшая сессия начинается заново.
func (s *SessionStore) Update(chatID int64, apply func(*Session)) Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	session, ok := s.sessions[chatID]
	if !ok || session.IsStale(now) {
		session = &Session{ChatID: chatID}
		s.sessions[chatID] = session
	}

	apply(session)
	session.LastActivity = now

	return *session
}

// Take забирает готовую сессию из хранилища
func (s *SessionStore) Take(chatID int64) (Session, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, ok := s.sessions[chatID]
	if !ok || !session.Ready() {
		return Session{}, false
	}

	delete(s.sessions, chatID)
	return *session, true
}

// Reset удаляет сессию чата
func (s *SessionStore) Reset(chatID int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.sessions, chatID)
}

// Cleanup удаляет устаревшие сессии и возвращает их количество
func (s *SessionStore) Cleanup() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	removed := 0
	for chatID, session := range s.sessions {
		if session.IsStale(now) {
			delete(s.sessions, chatID)
			removed++
		}
	}
	return removed
}

// Len возвращает количество активных сессий
func (s *SessionStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.sessions)
}
