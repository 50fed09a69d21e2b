package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"habitHeroAPI/internal/schedule"
	"habitHeroAPI/internal/types/group"
	"habitHeroAPI/internal/types/notification"
)

// Change tells subscribers which key moved. External is set when another
// process wrote the value and Watch picked it up.
type Change struct {
	Key      string
	External bool
}

// Store owns the client state. All reads return copies; every mutation
// persists first and then publishes a Change.
type Store struct {
	persister Persister

	mu       sync.RWMutex
	groups   []LocalGroup
	settings notification.Settings
	history  map[string]string
	userID   uuid.UUID
	raw      map[string][]byte

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// Open loads every key from p. A device without a user id gets a fresh one.
func Open(p Persister) (*Store, error) {
	s := &Store{
		persister: p,
		history:   make(map[string]string),
		raw:       make(map[string][]byte),
		subs:      make(map[int]func(Change)),
	}
	s.settings = *notification.DefaultSettings(uuid.Nil)
	s.settings.Enabled = false

	for _, key := range []string{KeyGlobalUserID, KeyGroups, KeyNotificationSettings, KeyNotificationHistory} {
		if _, err := s.reload(key); err != nil {
			return nil, err
		}
	}

	if s.userID == uuid.Nil {
		s.userID = uuid.New()
		if err := s.save(KeyGlobalUserID, s.userID.String()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// reload reads key from the persister and reports whether its bytes changed.
func (s *Store) reload(key string) (bool, error) {
	data, ok, err := s.persister.Load(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok || bytes.Equal(s.raw[key], data) {
		return false, nil
	}

	switch key {
	case KeyGlobalUserID:
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		s.userID = id
	case KeyGroups:
		var groups []LocalGroup
		if err := json.Unmarshal(data, &groups); err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		s.groups = groups
	case KeyNotificationSettings:
		var st notification.Settings
		if err := json.Unmarshal(data, &st); err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		s.settings = st
	case KeyNotificationHistory:
		history := make(map[string]string)
		if err := json.Unmarshal(data, &history); err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
		s.history = history
	}
	s.raw[key] = data
	return true, nil
}

func (s *Store) save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.persister.Save(key, data); err != nil {
		return err
	}
	s.raw[key] = data
	return nil
}

// Subscribe registers fn for every change. The returned func removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func cloneGroup(g LocalGroup) LocalGroup {
	data, _ := json.Marshal(g)
	var out LocalGroup
	_ = json.Unmarshal(data, &out)
	return out
}

func (s *Store) Groups() []LocalGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LocalGroup, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, cloneGroup(g))
	}
	return out
}

func (s *Store) Group(id uuid.UUID) (LocalGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.ID == id {
			return cloneGroup(g), true
		}
	}
	return LocalGroup{}, false
}

// View returns the group as a local GroupView.
func (s *Store) View(id uuid.UUID) (GroupView, bool) {
	g, ok := s.Group(id)
	if !ok {
		return GroupView{}, false
	}
	return GroupViewFromLocal(g), true
}

func (s *Store) setGroups(groups []LocalGroup) error {
	s.mu.Lock()
	prev := s.groups
	s.groups = groups
	if err := s.save(KeyGroups, groups); err != nil {
		s.groups = prev
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.publish(Change{Key: KeyGroups})
	return nil
}

func (s *Store) SetGroups(groups []LocalGroup) error {
	next := make([]LocalGroup, 0, len(groups))
	for _, g := range groups {
		next = append(next, cloneGroup(g))
	}
	return s.setGroups(next)
}

// UpsertGroup replaces the group with the same id, or prepends it.
func (s *Store) UpsertGroup(g LocalGroup) error {
	groups := s.Groups()
	for i := range groups {
		if groups[i].ID == g.ID {
			groups[i] = cloneGroup(g)
			return s.setGroups(groups)
		}
	}
	return s.setGroups(append([]LocalGroup{cloneGroup(g)}, groups...))
}

func (s *Store) RemoveGroup(id uuid.UUID) error {
	groups := s.Groups()
	next := groups[:0]
	for _, g := range groups {
		if g.ID != id {
			next = append(next, g)
		}
	}
	return s.setGroups(next)
}

// CreateGroup starts a local group with the device user as its admin.
func (s *Store) CreateGroup(name, icon, displayName string, now time.Time) (LocalGroup, error) {
	if icon == "" {
		icon = group.DefaultIcon
	}
	g := LocalGroup{
		ID:        uuid.New(),
		Name:      name,
		Icon:      icon,
		Theme:     group.DefaultTheme,
		CreatedAt: millis(now),
		Members: []LocalMember{{
			UserID:      s.UserID(),
			DisplayName: displayName,
			Avatar:      "👤",
			Role:        group.RoleAdmin,
			JoinedAt:    millis(now),
		}},
		Challenges: []LocalChallenge{},
	}
	return g, s.UpsertGroup(g)
}

// update runs fn on a local view of the group and persists the result.
func (s *Store) update(groupID uuid.UUID, fn func(v *GroupView) error) error {
	v, ok := s.View(groupID)
	if !ok {
		return fmt.Errorf("group %s not found", groupID)
	}
	if err := fn(&v); err != nil {
		return err
	}
	g, err := v.ToLocal()
	if err != nil {
		return err
	}
	return s.UpsertGroup(g)
}

// ToggleTask toggles the device user's completion and persists it.
func (s *Store) ToggleTask(groupID, challengeID uuid.UUID, dayNumber int, now time.Time) (bool, error) {
	var done bool
	err := s.update(groupID, func(v *GroupView) error {
		var err error
		done, err = v.ToggleTask(challengeID, dayNumber, s.UserID(), now)
		return err
	})
	return done, err
}

// VoteDelete records the device user's vote and drops the group once everyone agreed.
func (s *Store) VoteDelete(groupID uuid.UUID) (bool, error) {
	v, ok := s.View(groupID)
	if !ok {
		return false, fmt.Errorf("group %s not found", groupID)
	}
	deleted, err := v.VoteDelete(s.UserID())
	if err != nil {
		return false, err
	}
	if deleted {
		return true, s.RemoveGroup(groupID)
	}
	g, err := v.ToLocal()
	if err != nil {
		return false, err
	}
	return false, s.UpsertGroup(g)
}

func (s *Store) AddChallenge(groupID uuid.UUID, in NewChallenge, now time.Time) (*ChallengeView, error) {
	var added ChallengeView
	err := s.update(groupID, func(v *GroupView) error {
		c, err := v.AddChallenge(in, now)
		if err != nil {
			return err
		}
		added = *c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

func (s *Store) NotificationSettings() notification.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Store) SetNotificationSettings(st notification.Settings) error {
	if _, _, err := schedule.ParseClock(st.ReminderTime); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.settings
	s.settings = st
	if err := s.save(KeyNotificationSettings, st); err != nil {
		s.settings = prev
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.publish(Change{Key: KeyNotificationSettings})
	return nil
}

// MarkNotified records that tag fired today. It returns false when tag
// already fired on now's date, so a reminder goes out at most once a day.
func (s *Store) MarkNotified(tag string, now time.Time) (bool, error) {
	today := schedule.LocalDateString(now)

	s.mu.Lock()
	if s.history[tag] == today {
		s.mu.Unlock()
		return false, nil
	}
	next := make(map[string]string, len(s.history)+1)
	for k, v := range s.history {
		next[k] = v
	}
	next[tag] = today
	if err := s.save(KeyNotificationHistory, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.history = next
	s.mu.Unlock()

	s.publish(Change{Key: KeyNotificationHistory})
	return true, nil
}

// Watch polls the persister every interval and publishes an external Change
// for each key another writer modified. It returns when ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync()
		}
	}
}

// Sync runs one Watch pass.
func (s *Store) Sync() {
	for _, key := range []string{KeyGroups, KeyNotificationSettings, KeyNotificationHistory} {
		changed, err := s.reload(key)
		if err != nil {
			slog.Warn("Client state reload failed", "key", key, "error", err)
			continue
		}
		if changed {
			s.publish(Change{Key: key, External: true})
		}
	}
}
