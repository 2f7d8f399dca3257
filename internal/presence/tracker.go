// Package presence tracks which users are currently active in trackd.
//
// The server records an Activity for every request that carries an acting
// user. Roster returns the recently active users, optionally limited to one
// project, and a background reaper marks users idle after a threshold and
// eventually forgets them.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry is one user's live presence state.
type Entry struct {
	UserID      string    `json:"user_id"`
	ProjectID   string    `json:"project_id,omitempty"` // last project touched
	TicketID    string    `json:"ticket_id,omitempty"`  // last ticket touched
	LastAction  string    `json:"last_action"`          // e.g. "PATCH ticket"
	LastSeen    time.Time `json:"last_seen"`
	FirstSeen   time.Time `json:"first_seen"`
	IdleSecs    float64   `json:"idle_secs"`
	ActionCount int64     `json:"action_count"`
	Idle        bool      `json:"idle,omitempty"` // marked by the reaper
	IdleSince   time.Time `json:"idle_since,omitempty"`
}

// Activity is one observed user action.
type Activity struct {
	UserID    string
	Action    string
	ProjectID string
	TicketID  string
}

// ReaperConfig configures the background idle reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a user must be inactive before being marked idle.
	// Default: 15 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long after being marked idle a user is dropped from
	// the roster. Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called for each user newly marked idle, outside the lock.
	OnIdle func(userID string)
}

// Tracker maintains an in-memory roster of active users.
type Tracker struct {
	mu    sync.RWMutex
	users map[string]*userState
	now   func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type userState struct {
	firstSeen   time.Time
	lastSeen    time.Time
	lastAction  string
	projectID   string
	ticketID    string
	actionCount int64
	idle        bool
	idleSince   time.Time
}

// New creates a new presence tracker.
func New() *Tracker {
	return &Tracker{
		users: make(map[string]*userState),
		now:   time.Now,
	}
}

// Record updates the presence state of the acting user.
func (t *Tracker) Record(a Activity) {
	if a.UserID == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.users[a.UserID]
	if !ok {
		st = &userState{firstSeen: now}
		t.users[a.UserID] = st
	}
	if st.idle {
		st.idle = false
		st.idleSince = time.Time{}
	}

	st.lastSeen = now
	st.lastAction = a.Action
	st.actionCount++
	if a.ProjectID != "" {
		st.projectID = a.ProjectID
	}
	// A project-level action clears the focused ticket.
	st.ticketID = a.TicketID
}

// Roster returns a snapshot of tracked users, most recently active first.
// staleThreshold excludes users inactive for longer; 0 includes everyone.
// A non-empty projectID keeps only users last seen in that project.
func (t *Tracker) Roster(staleThreshold time.Duration, projectID string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.users))
	for id, st := range t.users {
		idle := now.Sub(st.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		if projectID != "" && st.projectID != projectID {
			continue
		}
		entries = append(entries, Entry{
			UserID:      id,
			ProjectID:   st.projectID,
			TicketID:    st.ticketID,
			LastAction:  st.lastAction,
			LastSeen:    st.lastSeen,
			FirstSeen:   st.firstSeen,
			IdleSecs:    idle.Seconds(),
			ActionCount: st.actionCount,
			Idle:        st.idle,
			IdleSince:   st.idleSince,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].UserID < entries[j].UserID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches a background goroutine that periodically marks
// inactive users idle. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 15 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyIdle []string

	t.mu.Lock()
	for id, st := range t.users {
		if st.idle {
			if now.Sub(st.idleSince) > cfg.EvictAfter {
				delete(t.users, id)
			}
			continue
		}
		if now.Sub(st.lastSeen) > cfg.IdleThreshold {
			st.idle = true
			st.idleSince = now
			newlyIdle = append(newlyIdle, id)
		}
	}
	t.mu.Unlock()

	for _, id := range newlyIdle {
		slog.Debug("presence: user idle", "user_id", id, "threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(id)
		}
	}
}
