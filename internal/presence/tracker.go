package presence

import (
	"context"
	"fmt"
	"strings"
)

const (
	onlineUsersKey       = "online_users"
	onlineConnectionsKey = "online_connections"
	eventViewersPrefix   = "event_viewers:"
)

// EventViewersKey is the set of users viewing eventID.
func EventViewersKey(eventID string) string {
	return eventViewersPrefix + eventID
}

// Tracker maintains the online user set and the per-event viewer sets.
//
// With refCount disabled a user is a flat member of the online set: the
// first Disconnect of any of their connections marks them offline.  With
// refCount enabled open connections are counted per user and the user
// leaves the online set only when the last one closes.
type Tracker struct {
	store    SetStore
	refCount bool
}

// NewTracker returns a tracker on store.
func NewTracker(store SetStore, refCount bool) *Tracker {
	return &Tracker{store: store, refCount: refCount}
}

// RefCount reports whether connections are counted per user.
func (t *Tracker) RefCount() bool { return t.refCount }

// AddOnlineUser marks userID online.  Adding twice is a no-op.
func (t *Tracker) AddOnlineUser(ctx context.Context, userID string) error {
	return t.store.SAdd(ctx, onlineUsersKey, userID)
}

// RemoveOnlineUser marks userID offline.  Removing an absent user is a no-op.
func (t *Tracker) RemoveOnlineUser(ctx context.Context, userID string) error {
	return t.store.SRem(ctx, onlineUsersKey, userID)
}

// CountOnline is the number of online users.
func (t *Tracker) CountOnline(ctx context.Context) (int64, error) {
	return t.store.SCard(ctx, onlineUsersKey)
}

// IsOnline reports whether userID is online.
func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	return t.store.SIsMember(ctx, onlineUsersKey, userID)
}

// AddEventViewer records userID as viewing eventID.
func (t *Tracker) AddEventViewer(ctx context.Context, eventID, userID string) error {
	return t.store.SAdd(ctx, EventViewersKey(eventID), userID)
}

// RemoveEventViewer drops userID from the viewers of eventID.
func (t *Tracker) RemoveEventViewer(ctx context.Context, eventID, userID string) error {
	return t.store.SRem(ctx, EventViewersKey(eventID), userID)
}

// CountEventViewers is the number of users viewing eventID.
func (t *Tracker) CountEventViewers(ctx context.Context, eventID string) (int64, error) {
	return t.store.SCard(ctx, EventViewersKey(eventID))
}

// EventViewers lists the users viewing eventID.
func (t *Tracker) EventViewers(ctx context.Context, eventID string) ([]string, error) {
	return t.store.SMembers(ctx, EventViewersKey(eventID))
}

// ViewingEventsOf returns the events userID is viewing.  It scans every
// viewer set, so its cost grows with the number of watched events.
//
// TODO: keep a user -> events reverse index next to the viewer sets once
// the number of concurrently watched events makes the scan noticeable.
func (t *Tracker) ViewingEventsOf(ctx context.Context, userID string) ([]string, error) {
	keys, err := t.store.ScanKeys(ctx, eventViewersPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan viewer sets: %w", err)
	}
	var events []string
	for _, key := range keys {
		ok, err := t.store.SIsMember(ctx, key, userID)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", key, err)
		}
		if ok {
			events = append(events, strings.TrimPrefix(key, eventViewersPrefix))
		}
	}
	return events, nil
}

// RemoveFromAllEvents drops userID from every viewer set.
func (t *Tracker) RemoveFromAllEvents(ctx context.Context, userID string) error {
	events, err := t.ViewingEventsOf(ctx, userID)
	if err != nil {
		return err
	}
	for _, eventID := range events {
		if err := t.RemoveEventViewer(ctx, eventID, userID); err != nil {
			return err
		}
	}
	return nil
}

// Connect records a new connection of userID.
func (t *Tracker) Connect(ctx context.Context, userID string) error {
	if t.refCount {
		if _, err := t.store.HIncrBy(ctx, onlineConnectionsKey, userID, 1); err != nil {
			return fmt.Errorf("count connection: %w", err)
		}
	}
	return t.AddOnlineUser(ctx, userID)
}

// Disconnect records that one connection of userID closed and reports
// whether the user went offline.
func (t *Tracker) Disconnect(ctx context.Context, userID string) (bool, error) {
	if !t.refCount {
		return true, t.RemoveOnlineUser(ctx, userID)
	}

	n, err := t.store.HIncrBy(ctx, onlineConnectionsKey, userID, -1)
	if err != nil {
		return false, fmt.Errorf("count connection: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if n < 0 {
		// More closes than opens were counted, e.g. connections opened
		// before reference counting was enabled.
		if err := t.store.HDel(ctx, onlineConnectionsKey, userID); err != nil {
			return false, err
		}
	}
	if err := t.RemoveOnlineUser(ctx, userID); err != nil {
		return false, err
	}
	// A connection opened between the decrement and the removal above
	// must keep the user online.
	if n, err := t.store.HIncrBy(ctx, onlineConnectionsKey, userID, 0); err == nil && n > 0 {
		return false, t.AddOnlineUser(ctx, userID)
	}
	return true, nil
}

// Connections returns the number of open connections counted for userID.
// It is always zero when reference counting is disabled.
func (t *Tracker) Connections(ctx context.Context, userID string) (int64, error) {
	if !t.refCount {
		return 0, nil
	}
	return t.store.HIncrBy(ctx, onlineConnectionsKey, userID, 0)
}
