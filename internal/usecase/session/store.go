package session

import (
	"sync"
	"time"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
)

// Store хранит состояние диалога по пользователям в памяти процесса.
// Общий мьютекс защищает только саму мапу; содержимое записи защищено
// её собственным мьютексом, поэтому пользователи не блокируют друг друга.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	mu        sync.Mutex
	session   domain.Session
	expiresAt time.Time
}

var _ domain.SessionStore = (*Store)(nil)

// NewStore создаёт хранилище сессий. При ttl <= 0 сессии не истекают.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[int64]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Store) entryFor(userID int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{}
		s.entries[userID] = e
	}
	return e
}

// expireLocked сбрасывает запись, если её срок истёк. Вызывается под e.mu.
func (s *Store) expireLocked(e *entry) {
	if s.ttl <= 0 {
		return
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		e.session = domain.Session{}
		e.expiresAt = time.Time{}
	}
}

// touchLocked продлевает срок жизни записи. Вызывается под e.mu.
func (s *Store) touchLocked(e *entry) {
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
}

// Get возвращает сессию пользователя; нулевую, если записи нет или она истекла.
func (s *Store) Get(userID int64) domain.Session {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.expireLocked(e)
	return e.session
}

// SetSelectedEvent запоминает выбранное пользователем событие.
func (s *Store) SetSelectedEvent(userID, eventID int64) {
	s.mutate(userID, func(sess *domain.Session) {
		sess.SelectedEventID = eventID
	})
}

// TakeSelectedEvent атомарно читает и очищает выбранное событие.
func (s *Store) TakeSelectedEvent(userID int64) (int64, bool) {
	var (
		eventID int64
		ok      bool
	)
	s.mutate(userID, func(sess *domain.Session) {
		eventID = sess.SelectedEventID
		ok = eventID != 0
		sess.SelectedEventID = 0
	})
	return eventID, ok
}

// ClearSelectedEvent сбрасывает выбор события.
func (s *Store) ClearSelectedEvent(userID int64) {
	s.mutate(userID, func(sess *domain.Session) {
		sess.SelectedEventID = 0
	})
}

// EnterTestMode включает режим проверки голоса.
func (s *Store) EnterTestMode(userID int64) {
	s.mutate(userID, func(sess *domain.Session) {
		sess.TestMode = true
	})
}

// ExitTestMode выключает режим проверки голоса.
func (s *Store) ExitTestMode(userID int64) {
	s.mutate(userID, func(sess *domain.Session) {
		sess.TestMode = false
	})
}

// InTestMode сообщает, находится ли пользователь в режиме проверки голоса.
func (s *Store) InTestMode(userID int64) bool {
	return s.Get(userID).TestMode
}

// SetPendingVoiceprint сохраняет первый захваченный отпечаток.
func (s *Store) SetPendingVoiceprint(userID int64, vp domain.Voiceprint) {
	s.mutate(userID, func(sess *domain.Session) {
		sess.PendingVoiceprint = vp
	})
}

// TakePendingVoiceprint атомарно читает и очищает отложенный отпечаток,
// чтобы второе конкурентное голосовое сообщение не употребило его дважды.
func (s *Store) TakePendingVoiceprint(userID int64) (domain.Voiceprint, bool) {
	var (
		vp domain.Voiceprint
		ok bool
	)
	s.mutate(userID, func(sess *domain.Session) {
		vp = sess.PendingVoiceprint
		ok = vp != nil
		sess.PendingVoiceprint = nil
	})
	return vp, ok
}

// SetActivityHint запоминает название последнего выбранного события.
func (s *Store) SetActivityHint(userID int64, hint string) {
	s.mutate(userID, func(sess *domain.Session) {
		sess.ActivityHint = hint
	})
}

// ActivityHint возвращает подсказку для анализатора речи.
func (s *Store) ActivityHint(userID int64) string {
	return s.Get(userID).ActivityHint
}

func (s *Store) mutate(userID int64, fn func(*domain.Session)) {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.expireLocked(e)
	fn(&e.session)
	s.touchLocked(e)
}
