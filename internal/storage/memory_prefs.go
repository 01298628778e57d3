package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

type prefKey struct {
	user     int64
	category int
}

type dwellKey struct {
	user     int64
	itemType string
	item     int64
}

type dwell struct {
	seconds float64
	scroll  float64
}

// MemoryPreferences is the in-process PreferenceStore.
type MemoryPreferences struct {
	mu     sync.Mutex
	static map[int64]map[int]struct{}
	prefs  map[prefKey]*CategoryPreference
	views  []ViewEvent
	dwells map[dwellKey]dwell
	now    func() time.Time
}

var _ PreferenceStore = (*MemoryPreferences)(nil)

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{
		static: make(map[int64]map[int]struct{}),
		prefs:  make(map[prefKey]*CategoryPreference),
		dwells: make(map[dwellKey]dwell),
		now:    time.Now,
	}
}

func (m *MemoryPreferences) StaticPreferences(ctx context.Context, userID int64) (map[int]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]struct{}, len(m.static[userID]))
	for c := range m.static[userID] {
		out[c] = struct{}{}
	}
	return out, nil
}

func (m *MemoryPreferences) SetStaticPreference(ctx context.Context, userID int64, categoryID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.static[userID] == nil {
		m.static[userID] = make(map[int]struct{})
	}
	m.static[userID][categoryID] = struct{}{}
	return nil
}

func (m *MemoryPreferences) CategoryPreferences(ctx context.Context, userID int64) ([]CategoryPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CategoryPreference
	for k, p := range m.prefs {
		if k.user == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InterestScore > out[j].InterestScore })
	return out, nil
}

func (m *MemoryPreferences) RecordView(ctx context.Context, e ViewEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ViewedAt.IsZero() {
		e.ViewedAt = m.now()
	}
	m.views = append(m.views, e)
	if e.CategoryID != 0 {
		p := m.pref(e.UserID, e.CategoryID)
		p.InteractionCount++
		p.LastInteraction = e.ViewedAt
	}
	return nil
}

func (m *MemoryPreferences) RecordDwell(ctx context.Context, e DwellEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dwellKey{e.UserID, e.ItemType, e.ItemID}
	d := m.dwells[k]
	d.seconds += e.DwellSeconds
	d.scroll = max(d.scroll, e.ScrollPercent)
	m.dwells[k] = d
	return nil
}

func (m *MemoryPreferences) RecentInteractions(ctx context.Context, userID int64, window time.Duration) ([]Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-window)
	var out []Interaction
	for _, v := range m.views {
		if v.UserID != userID || v.ViewedAt.Before(cutoff) {
			continue
		}
		in := Interaction{ItemType: v.ItemType, ItemID: v.ItemID, CategoryID: v.CategoryID, ViewedAt: v.ViewedAt}
		if d, ok := m.dwells[dwellKey{userID, v.ItemType, v.ItemID}]; ok {
			in.HasDwell = true
			in.DwellSeconds = d.seconds
			in.ScrollPercent = d.scroll
		}
		out = append(out, in)
	}
	return out, nil
}

func (m *MemoryPreferences) BoostInterest(ctx context.Context, userID int64, categoryID int, initial, step float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := prefKey{userID, categoryID}
	p, ok := m.prefs[k]
	if !ok {
		m.prefs[k] = &CategoryPreference{CategoryID: categoryID, InterestScore: initial, InteractionCount: 1, LastInteraction: m.now()}
		return nil
	}
	p.InterestScore = min(1, p.InterestScore+step)
	p.InteractionCount++
	p.LastInteraction = m.now()
	return nil
}

func (m *MemoryPreferences) SeedInterest(ctx context.Context, userID int64, categoryID int, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pref(userID, categoryID)
	p.InterestScore = max(p.InterestScore, score)
	return nil
}

// pref returns the row for (user, category), creating an empty one. Callers hold mu.
func (m *MemoryPreferences) pref(userID int64, categoryID int) *CategoryPreference {
	k := prefKey{userID, categoryID}
	p, ok := m.prefs[k]
	if !ok {
		p = &CategoryPreference{CategoryID: categoryID}
		m.prefs[k] = p
	}
	return p
}
