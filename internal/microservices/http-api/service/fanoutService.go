package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"taskhub/internal/microservices/http-api/models"
	"taskhub/internal/workerpool"
)

// DispatchResult is the outcome of one live delivery attempt. None of them are errors:
// the stored record is the source of truth and clients catch up from it.
type DispatchResult int

const (
	DispatchDelivered       DispatchResult = iota // written to the recipient's connection
	DispatchMissed                                // recipient has no live connection
	DispatchTransportFailed                       // connection found but the send failed
	DispatchRelayed                               // handed to the cross-instance relay
)

func (r DispatchResult) String() string {
	switch r {
	case DispatchDelivered:
		return "delivered"
	case DispatchMissed:
		return "missed"
	case DispatchTransportFailed:
		return "transport_failed"
	case DispatchRelayed:
		return "relayed"
	}
	return "unknown"
}

// Dispatcher pushes an enriched notification to the recipient's live connection.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipientID string, n models.EnrichedNotification) DispatchResult
}

// AssigneeLookup loads a task with project, direct users and groups with members.
type AssigneeLookup interface {
	GetWithAssignees(ctx context.Context, taskID string) (*models.Task, error)
}

// CommentEvent is the trigger handed over by the comment creation flow.
type CommentEvent struct {
	TaskID    string
	AuthorID  string
	CommentID string
	Content   string
}

// Validate rejects events that must not produce any notification.
func (e CommentEvent) Validate() error {
	var missing []string
	if strings.TrimSpace(e.TaskID) == "" {
		missing = append(missing, "task id")
	}
	if strings.TrimSpace(e.AuthorID) == "" {
		missing = append(missing, "author id")
	}
	if strings.TrimSpace(e.CommentID) == "" {
		missing = append(missing, "comment id")
	}
	if strings.TrimSpace(e.Content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return fmt.Errorf("comment event: %w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// FanoutResult summarises one fan-out. Partial success is expected: each recipient is
// independent, so Failed lists recipients whose record could not be stored.
type FanoutResult struct {
	Recipients []string          `json:"recipients"`
	Created    int               `json:"created"`
	Delivered  int               `json:"delivered"`
	Failed     []string          `json:"failed,omitempty"`
	Outcomes   map[string]string `json:"-"`
}

type FanoutService interface {
	NotifyComment(ctx context.Context, event CommentEvent) (*FanoutResult, error)
}

type fanoutService struct {
	notifications NotificationService
	tasks         AssigneeLookup
	users         UserLookup
	dispatcher    Dispatcher
	workers       int
	storeTimeout  time.Duration
	logger        *slog.Logger
}

func NewFanoutService(
	notifications NotificationService,
	tasks AssigneeLookup,
	users UserLookup,
	dispatcher Dispatcher,
	workers int,
	storeTimeout time.Duration,
	logger *slog.Logger,
) FanoutService {
	if logger == nil {
		logger = slog.Default()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &fanoutService{
		notifications: notifications,
		tasks:         tasks,
		users:         users,
		dispatcher:    dispatcher,
		workers:       workers,
		storeTimeout:  storeTimeout,
		logger:        logger,
	}
}

// NotifyComment resolves recipients for a task comment, stores one notification per
// recipient and attempts live delivery. A store failure for one recipient is logged and
// recorded in the result; the remaining recipients are still processed.
func (s *fanoutService) NotifyComment(ctx context.Context, event CommentEvent) (*FanoutResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	task, err := s.tasks.GetWithAssignees(ctx, event.TaskID)
	if err != nil {
		return nil, classifyReadErr("load task", err)
	}
	author, err := s.users.FindByID(ctx, event.AuthorID)
	if err != nil {
		return nil, classifyReadErr("load author", err)
	}

	recipients := ResolveRecipients(AssigneesFromTask(task), author.ID)
	result := &FanoutResult{
		Recipients: recipients,
		Outcomes:   make(map[string]string, len(recipients)),
	}
	if len(recipients) == 0 {
		s.logger.Debug("fanout_no_recipients", "task_id", task.ID, "comment_id", event.CommentID)
		return result, nil
	}

	var mu sync.Mutex
	pool := workerpool.New(ctx, s.workers, s.logger)
	pool.Start()
	for _, recipientID := range recipients {
		recipientID := recipientID
		submitted := pool.Submit(func(ctx context.Context) error {
			outcome, err := s.deliver(ctx, recipientID, event, task, author)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, recipientID)
				result.Outcomes[recipientID] = "store_failed"
				return err
			}
			result.Created++
			if outcome == DispatchDelivered {
				result.Delivered++
			}
			result.Outcomes[recipientID] = outcome.String()
			return nil
		})
		if !submitted {
			mu.Lock()
			result.Failed = append(result.Failed, recipientID)
			result.Outcomes[recipientID] = "cancelled"
			mu.Unlock()
		}
	}
	pool.Wait()

	// tasks dropped by a cancelled pool never ran
	for _, recipientID := range recipients {
		if _, done := result.Outcomes[recipientID]; !done {
			result.Failed = append(result.Failed, recipientID)
			result.Outcomes[recipientID] = "cancelled"
		}
	}

	s.logger.Info("fanout_completed",
		"task_id", task.ID,
		"comment_id", event.CommentID,
		"recipients", len(recipients),
		"created", result.Created,
		"delivered", result.Delivered,
		"failed", len(result.Failed),
	)
	return result, nil
}

// deliver stores the record for one recipient and pushes it if they are connected.
func (s *fanoutService) deliver(ctx context.Context, recipientID string, event CommentEvent, task *models.Task, author *models.User) (DispatchResult, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	notification, err := s.notifications.Create(storeCtx, CreateNotificationInput{
		RecipientID: recipientID,
		AuthorID:    author.ID,
		Type:        models.NotificationNewComment,
		CommentID:   event.CommentID,
		TaskID:      task.ID,
		ProjectID:   task.ProjectID,
		Message:     event.Content,
	})
	if err != nil {
		s.logger.Error("fanout_recipient_failed",
			"recipient_id", recipientID,
			"task_id", task.ID,
			"comment_id", event.CommentID,
			"error", err,
		)
		return DispatchMissed, err
	}

	return s.dispatcher.Dispatch(ctx, recipientID, buildEnriched(*notification, task, author)), nil
}
