// Package reconcile keeps a client's notification list consistent across three
// sources: the local cache, the unread-fetch and live pushes. All merging happens in
// Reduce, a pure function; Engine adds persistence and the backend calls around it.
package reconcile

import (
	"sort"
	"time"
)

// Item is one notification as the client shows it. Its JSON matches the
// enriched notification the API returns and pushes.
type Item struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	UserID      string    `json:"userId"`
	AuthorID    string    `json:"authorId,omitempty"`
	UserName    string    `json:"userName,omitempty"`
	CommentID   string    `json:"commentId,omitempty"`
	TaskID      string    `json:"taskId,omitempty"`
	TaskTitle   string    `json:"taskTitle,omitempty"`
	ProjectID   string    `json:"projectId,omitempty"`
	ProjectName string    `json:"projectName,omitempty"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// State is the client's view: items in arrival order, unique by id, plus the unseen flag.
type State struct {
	Items     []Item `json:"items"`
	HasUnseen bool   `json:"hasUnseen"`
}

// Action is an input to Reduce.
type Action interface {
	isAction()
}

// Restored replaces the state with what the local cache held.
type Restored struct {
	Items     []Item
	HasUnseen bool
}

// FetchedUnread merges the result of an unread-fetch.
type FetchedUnread struct {
	Items []Item
}

// Pushed merges one live event.
type Pushed struct {
	Item Item
}

// UnseenCleared resets the unseen flag and leaves the items alone.
type UnseenCleared struct{}

// Dismissed removes one item locally.
type Dismissed struct {
	ID string
}

// Cleared drops every item and the flag.
type Cleared struct{}

func (Restored) isAction()      {}
func (FetchedUnread) isAction() {}
func (Pushed) isAction()        {}
func (UnseenCleared) isAction() {}
func (Dismissed) isAction()     {}
func (Cleared) isAction()       {}

// Reduce applies a to s for userID and returns the new state. s is not modified.
// Items addressed to another user are dropped; items already present by id are ignored,
// so fetches and pushes of the same notification commute.
func Reduce(s State, userID string, a Action) State {
	switch a := a.(type) {
	case Restored:
		next := State{HasUnseen: a.HasUnseen}
		next.Items, _ = merge(nil, a.Items, "")
		return next

	case FetchedUnread:
		items, added := merge(s.Items, a.Items, userID)
		return State{Items: items, HasUnseen: s.HasUnseen || added > 0}

	case Pushed:
		items, added := merge(s.Items, []Item{a.Item}, userID)
		if added == 0 {
			return s
		}
		return State{Items: items, HasUnseen: true}

	case UnseenCleared:
		return State{Items: s.Items, HasUnseen: false}

	case Dismissed:
		items := make([]Item, 0, len(s.Items))
		for _, it := range s.Items {
			if it.ID != a.ID {
				items = append(items, it)
			}
		}
		hasUnseen := s.HasUnseen
		if len(items) == 0 {
			hasUnseen = false
		}
		return State{Items: items, HasUnseen: hasUnseen}

	case Cleared:
		return State{Items: []Item{}}
	}
	return s
}

// Fold applies actions in order.
func Fold(s State, userID string, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, userID, a)
	}
	return s
}

// merge appends incoming items whose id is new. An empty userID skips the recipient filter.
func merge(existing, incoming []Item, userID string) ([]Item, int) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]Item, 0, len(existing)+len(incoming))
	for _, it := range existing {
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	added := 0
	for _, it := range incoming {
		if it.ID == "" {
			continue
		}
		if userID != "" && it.UserID != userID {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
		added++
	}
	return out, added
}

// Sorted returns the items newest first; ties keep arrival order.
func (s State) Sorted() []Item {
	items := make([]Item, len(s.Items))
	copy(items, s.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func sameState(a, b State) bool {
	if a.HasUnseen != b.HasUnseen || len(a.Items) != len(b.Items) {
		return false
	}
	for i := range a.Items {
		if a.Items[i].ID != b.Items[i].ID {
			return false
		}
	}
	return true
}
