package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codesketch/hub/internal/domain"
)

// StoreConfig carries the admission caps and eviction knobs.
type StoreConfig struct {
	MaxRooms       int
	MaxRoomMembers int
	RoomTTL        time.Duration
	SweepInterval  time.Duration
}

type roomState struct {
	room         domain.Room
	members      map[SessionID]domain.Member
	participants map[string]struct{}
}

// RoomStore owns the room map and every room's mutable state.
// All access goes through its methods; a single mutex is the
// serialization point, so concurrent operations on the same room
// never interleave mid-mutation.
type RoomStore struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*roomState
	activity map[domain.RoomID]time.Time
	cfg      StoreConfig

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRoomStore(cfg StoreConfig) *RoomStore {
	s := &RoomStore{
		rooms:    make(map[domain.RoomID]*roomState),
		activity: make(map[domain.RoomID]time.Time),
		cfg:      cfg,
		stop:     make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go s.sweepLoop()
	}
	return s
}

// Departure is what remains after a member leaves a still-live room.
// A nil Departure means the room was deleted (or never existed) and
// there is nobody left to notify.
type Departure struct {
	Room     domain.Room
	Username string
}

// RoomExists is a pure lookup with no side effects.
func (s *RoomStore) RoomExists(id domain.RoomID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[id]
	return ok
}

// GetOrCreateRoom returns the room document, creating the room if the
// cap allows. Touches activity.
func (s *RoomStore) GetOrCreateRoom(id domain.RoomID, creator *domain.Identity) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.getOrCreateLocked(id, creator)
	if err != nil {
		return domain.Room{}, err
	}
	s.touchLocked(id)
	return st.room, nil
}

func (s *RoomStore) getOrCreateLocked(id domain.RoomID, creator *domain.Identity) (*roomState, error) {
	if st, ok := s.rooms[id]; ok {
		return st, nil
	}
	if len(s.rooms) >= s.cfg.MaxRooms {
		return nil, ErrCapacityExceeded
	}
	st := &roomState{
		room: domain.Room{
			ID:        id,
			Language:  domain.DefaultLanguage,
			CreatedAt: time.Now(),
		},
		members:      make(map[SessionID]domain.Member),
		participants: make(map[string]struct{}),
	}
	if creator != nil {
		st.room.CreatedBy = creator.ID
		st.room.CreatorEmail = creator.Email
	}
	s.rooms[id] = st
	log.Info().Str("module", "core.store").Str("room", string(id)).Str("creator", st.room.CreatorEmail).Msg("room created")
	return st, nil
}

// AddMember inserts the member record, creating the room if absent.
// Returns the post-insert document snapshot for the private sync.
func (s *RoomStore) AddMember(id domain.RoomID, sid SessionID, m domain.Member) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var creator *domain.Identity
	if m.UserID != "" {
		creator = &domain.Identity{ID: m.UserID, Email: m.Email}
	}
	st, err := s.getOrCreateLocked(id, creator)
	if err != nil {
		return domain.Room{}, err
	}
	if _, ok := st.members[sid]; !ok && len(st.members) >= s.cfg.MaxRoomMembers {
		return domain.Room{}, ErrRoomFull
	}
	st.members[sid] = m
	if m.UserID != "" {
		st.participants[m.UserID] = struct{}{}
	}
	s.touchLocked(id)
	log.Info().Str("module", "core.store").Str("room", string(id)).Str("sid", string(sid)).Str("username", m.Username).Msg("member added")
	return st.room, nil
}

// RemoveMember removes the member and deletes the room once empty.
// Safe to call for unknown rooms or members.
func (s *RoomStore) RemoveMember(id domain.RoomID, sid SessionID) *Departure {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[id]
	if !ok {
		return nil
	}
	m, ok := st.members[sid]
	if !ok {
		return nil
	}
	delete(st.members, sid)

	if len(st.members) == 0 {
		delete(s.rooms, id)
		delete(s.activity, id)
		log.Info().Str("module", "core.store").Str("room", string(id)).Msg("room deleted (empty)")
		return nil
	}
	s.touchLocked(id)
	return &Departure{Room: st.room, Username: m.Username}
}

func (s *RoomStore) UpdateCode(id domain.RoomID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[id]; ok {
		st.room.Code = code
		s.touchLocked(id)
	}
}

// UpdateLanguage ignores languages outside the supported set; the
// document never holds a value clients cannot render.
func (s *RoomStore) UpdateLanguage(id domain.RoomID, lang domain.Language) {
	if !lang.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[id]; ok {
		st.room.Language = lang
		s.touchLocked(id)
	}
}

func (s *RoomStore) UpdateInput(id domain.RoomID, stdin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[id]; ok {
		st.room.Stdin = stdin
		s.touchLocked(id)
	}
}

func (s *RoomStore) UpdateOutput(id domain.RoomID, output string, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[id]; ok {
		st.room.Output = output
		st.room.IsError = isError
		s.touchLocked(id)
	}
}

// Members returns the live roster. Empty slice if the room is absent.
func (s *RoomStore) Members(id domain.RoomID) []MemberView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.rooms[id]
	if !ok {
		return nil
	}
	out := make([]MemberView, 0, len(st.members))
	for sid, m := range st.members {
		out = append(out, MemberView{
			SessionID: sid,
			Username:  m.Username,
			UserID:    m.UserID,
			Email:     m.Email,
		})
	}
	return out
}

// RoomInfo is read-only room metadata for diagnostics.
type RoomInfo struct {
	RoomID        domain.RoomID `json:"roomId"`
	CreatedBy     string        `json:"createdBy,omitempty"`
	CreatorEmail  string        `json:"creatorEmail,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	Participants  []string      `json:"participants"`
	ActiveMembers int           `json:"activeClients"`
}

// Snapshot returns room metadata, or nil if the room is absent.
func (s *RoomStore) Snapshot(id domain.RoomID) *RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.rooms[id]
	if !ok {
		return nil
	}
	participants := make([]string, 0, len(st.participants))
	for p := range st.participants {
		participants = append(participants, p)
	}
	return &RoomInfo{
		RoomID:        id,
		CreatedBy:     st.room.CreatedBy,
		CreatorEmail:  st.room.CreatorEmail,
		CreatedAt:     st.room.CreatedAt,
		Participants:  participants,
		ActiveMembers: len(st.members),
	}
}

type Stats struct {
	TotalRooms   int `json:"totalRooms"`
	TotalMembers int `json:"totalClients"`
}

func (s *RoomStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{TotalRooms: len(s.rooms)}
	for _, r := range s.rooms {
		st.TotalMembers += len(r.members)
	}
	return st
}

// SweepExpired deletes every room idle for longer than the TTL and
// returns how many were removed.
func (s *RoomStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, last := range s.activity {
		if now.Sub(last) > s.cfg.RoomTTL {
			delete(s.rooms, id)
			delete(s.activity, id)
			removed++
			log.Info().Str("module", "core.store").Str("room", string(id)).Msg("room swept (inactive)")
		}
	}
	return removed
}

// Shutdown stops the sweep loop and clears all state. Idempotent.
func (s *RoomStore) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = make(map[domain.RoomID]*roomState)
	s.activity = make(map[domain.RoomID]time.Time)
}

func (s *RoomStore) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.SweepExpired(); n > 0 {
				log.Info().Str("module", "core.store").Int("removed", n).Msg("sweep finished")
			}
		}
	}
}

func (s *RoomStore) touchLocked(id domain.RoomID) {
	s.activity[id] = time.Now()
}
