package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Cache persists one user's State between sessions.
type Cache interface {
	Load(ctx context.Context, userID string) (State, error)
	Save(ctx context.Context, userID string, s State) error
	Clear(ctx context.Context, userID string) error
}

// API is the slice of the backend the engine calls.
type API interface {
	FetchUnread(ctx context.Context) ([]Item, error)
	MarkRead(ctx context.Context, id string) error
}

// Engine owns a user's State. Pushes, fetches and user actions may arrive from
// different goroutines; every transition goes through Reduce under one lock and the
// result is written to the cache when it changed.
type Engine struct {
	userID string
	cache  Cache
	api    API
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

func NewEngine(userID string, cache Cache, api API, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		userID: userID,
		cache:  cache,
		api:    api,
		logger: logger,
		state:  State{Items: []Item{}},
	}
}

// Start restores the cached state, then merges one unread-fetch. A fetch failure keeps
// the restored state and is returned.
func (e *Engine) Start(ctx context.Context) error {
	e.Restore(ctx)
	return e.Refresh(ctx)
}

// Restore loads the cached state without persisting it again. A cache read failure
// starts from an empty state.
func (e *Engine) Restore(ctx context.Context) {
	cached, err := e.cache.Load(ctx, e.userID)
	if err != nil {
		e.logger.Warn("cache_load_failed", "user_id", e.userID, "error", err)
		cached = State{}
	}
	e.apply(ctx, Restored{Items: cached.Items, HasUnseen: cached.HasUnseen}, false)
}

// Refresh merges the backend's unread list; anything new raises the unseen flag.
func (e *Engine) Refresh(ctx context.Context) error {
	fetched, err := e.api.FetchUnread(ctx)
	if err != nil {
		e.logger.Warn("unread_fetch_failed", "user_id", e.userID, "error", err)
		return fmt.Errorf("fetch unread: %w", err)
	}
	_, err = e.apply(ctx, FetchedUnread{Items: fetched}, true)
	return err
}

// HandlePush merges a live event and reports whether it was new. Events for another
// user and ids already in the list are dropped.
func (e *Engine) HandlePush(ctx context.Context, item Item) (bool, error) {
	if item.UserID != e.userID {
		e.logger.Debug("push_for_other_user_dropped", "user_id", e.userID, "recipient_id", item.UserID)
		return false, nil
	}
	return e.apply(ctx, Pushed{Item: item}, true)
}

func (e *Engine) ClearUnseenFlag(ctx context.Context) error {
	_, err := e.apply(ctx, UnseenCleared{}, true)
	return err
}

// Dismiss removes id locally without telling the backend.
func (e *Engine) Dismiss(ctx context.Context, id string) error {
	_, err := e.apply(ctx, Dismissed{ID: id}, true)
	return err
}

// Acknowledge marks id read on the backend and removes it locally. The item is removed
// even when the backend call fails; that error is returned so the caller can retry.
func (e *Engine) Acknowledge(ctx context.Context, id string) error {
	markErr := e.api.MarkRead(ctx, id)
	if markErr != nil {
		e.logger.Warn("mark_read_failed", "user_id", e.userID, "notification_id", id, "error", markErr)
		markErr = fmt.Errorf("mark %s read: %w", id, markErr)
	}
	_, saveErr := e.apply(ctx, Dismissed{ID: id}, true)
	return errors.Join(markErr, saveErr)
}

// Clear drops the user's list and flag and removes them from the cache.
func (e *Engine) Clear(ctx context.Context) error {
	e.apply(ctx, Cleared{}, false)
	if err := e.cache.Clear(ctx, e.userID); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Items returns the list in arrival order.
func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	items := make([]Item, len(e.state.Items))
	copy(items, e.state.Items)
	return items
}

// Sorted returns the list newest first.
func (e *Engine) Sorted() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Sorted()
}

func (e *Engine) HasUnseen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.HasUnseen
}

// apply runs the reducer and, when persist is set and the state changed, saves it.
// The in-memory state is kept even if saving fails.
func (e *Engine) apply(ctx context.Context, a Action, persist bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := Reduce(e.state, e.userID, a)
	changed := !sameState(e.state, next)
	e.state = next
	if !persist || !changed {
		return changed, nil
	}
	if err := e.cache.Save(ctx, e.userID, next); err != nil {
		e.logger.Warn("cache_save_failed", "user_id", e.userID, "error", err)
		return changed, fmt.Errorf("save cache: %w", err)
	}
	return changed, nil
}
