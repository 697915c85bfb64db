// Package inbox is a pure reducer over a user's notification list. Callers
// apply an action locally, attempt the remote write, and keep the returned
// Before snapshot to roll back to when the write fails.
package inbox

import "courtside/internal/models"

// State is a snapshot of one user's inbox.
type State struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

// ActionKind names a reducer action.
type ActionKind string

const (
	ActionLoad        ActionKind = "load"
	ActionAdd         ActionKind = "add"
	ActionMarkRead    ActionKind = "mark_read"
	ActionMarkUnread  ActionKind = "mark_unread"
	ActionMarkAllRead ActionKind = "mark_all_read"
)

type Action struct {
	Kind  ActionKind
	ID    string
	Item  models.Notification
	Items []models.Notification
}

// Step is the before/after pair of one reduction.
type Step struct {
	Before State
	After  State
}

// Changed reports whether the action had any effect.
func (s Step) Changed() bool {
	if len(s.Before.Items) != len(s.After.Items) || s.Before.Unread != s.After.Unread {
		return true
	}
	for i := range s.Before.Items {
		if s.Before.Items[i] != s.After.Items[i] {
			return true
		}
	}
	return false
}

// New builds a state from items.
func New(items []models.Notification) State {
	return Reduce(State{}, Action{Kind: ActionLoad, Items: items})
}

// Apply reduces and keeps the snapshot it started from.
func Apply(s State, a Action) Step {
	return Step{Before: s.clone(), After: Reduce(s, a)}
}

// Reduce returns the next state. s is never modified.
func Reduce(s State, a Action) State {
	next := s.clone()
	switch a.Kind {
	case ActionLoad:
		next.Items = append([]models.Notification(nil), a.Items...)
	case ActionAdd:
		for i := range next.Items {
			if next.Items[i].ID == a.Item.ID {
				next.Items[i] = a.Item
				return next.recount()
			}
		}
		next.Items = append([]models.Notification{a.Item}, next.Items...)
	case ActionMarkRead, ActionMarkUnread:
		read := a.Kind == ActionMarkRead
		for i := range next.Items {
			if next.Items[i].ID == a.ID {
				next.Items[i].Read = read
			}
		}
	case ActionMarkAllRead:
		for i := range next.Items {
			next.Items[i].Read = true
		}
	}
	return next.recount()
}

func (s State) clone() State {
	return State{Items: append([]models.Notification(nil), s.Items...), Unread: s.Unread}
}

func (s State) recount() State {
	s.Unread = 0
	for i := range s.Items {
		if !s.Items[i].Read {
			s.Unread++
		}
	}
	return s
}

// Find returns the notification with id.
func (s State) Find(id string) (models.Notification, bool) {
	for _, n := range s.Items {
		if n.ID == id {
			return n, true
		}
	}
	return models.Notification{}, false
}
