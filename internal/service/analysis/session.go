package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

// DefaultMaxRetries bounds how often a failed message may be re-sent.
const DefaultMaxRetries = 3

var (
	// ErrMessageNotFound is returned when a message ID is unknown for the user.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotRetryable is returned when a message is not in a retryable failed state.
	ErrNotRetryable = errors.New("message cannot be retried")
)

// Exchange is a user message and, when analysis succeeded, the assistant's reply.
type Exchange struct {
	Message models.ChatMessage  `json:"message"`
	Reply   *models.ChatMessage `json:"reply,omitempty"`
}

// Sessions keeps per-user chat histories of text analyses.
type Sessions struct {
	service    *Service
	maxRetries int
	now        func() time.Time
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[string][]models.ChatMessage
}

// NewSessions creates a session manager. maxRetries <= 0 means DefaultMaxRetries.
func NewSessions(service *Service, maxRetries int, now func() time.Time, logger *zap.Logger) *Sessions {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		service:    service,
		maxRetries: maxRetries,
		now:        now,
		logger:     logger,
		sessions:   make(map[string][]models.ChatMessage),
	}
}

// Send records a user message and analyzes it.
func (s *Sessions) Send(ctx context.Context, userID, text string) (Exchange, error) {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   strings.TrimSpace(text),
		Delivery:  models.Pending(),
		CreatedAt: s.now(),
	}
	s.append(userID, msg)
	return s.deliver(ctx, userID, msg, 0)
}

// Retry re-runs the analysis of a failed message while it has retries left.
func (s *Sessions) Retry(ctx context.Context, userID, messageID string) (Exchange, error) {
	msg, ok := s.find(userID, messageID)
	if !ok {
		return Exchange{}, ErrMessageNotFound
	}
	if !msg.Delivery.CanRetry() {
		return Exchange{Message: msg}, ErrNotRetryable
	}
	attempt := msg.Delivery.RetryCount + 1
	msg.Delivery = models.Pending()
	s.replace(userID, msg)
	return s.deliver(ctx, userID, msg, attempt)
}

// deliver runs the analysis; attempt counts the retries already spent.
func (s *Sessions) deliver(ctx context.Context, userID string, msg models.ChatMessage, attempt int) (Exchange, error) {
	result, err := s.service.AnalyzeText(ctx, userID, msg.Content)
	if err != nil {
		maxRetries := s.maxRetries
		if !retryable(err) {
			maxRetries = attempt
		}
		msg.Delivery = models.Failed(attempt, maxRetries, err.Error())
		s.replace(userID, msg)
		s.logger.Info("chat message failed",
			zap.String("user_id", userID),
			zap.String("message_id", msg.ID),
			zap.Int("retry_count", attempt),
			zap.Bool("can_retry", msg.Delivery.CanRetry()),
		)
		return Exchange{Message: msg}, err
	}

	msg.Delivery = models.Delivered()
	s.replace(userID, msg)

	reply := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   describe(result),
		Foods:     result.Foods,
		Delivery:  models.Delivered(),
		CreatedAt: s.now(),
	}
	s.append(userID, reply)
	return Exchange{Message: msg, Reply: &reply}, nil
}

// History returns a copy of userID's conversation.
func (s *Sessions) History(userID string) []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatMessage(nil), s.sessions[userID]...)
}

// Clear removes a user's conversation.
func (s *Sessions) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *Sessions) append(userID string, msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = append(s.sessions[userID], msg)
}

func (s *Sessions) replace(userID string, msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.sessions[userID] {
		if m.ID == msg.ID {
			s.sessions[userID][i] = msg
			return
		}
	}
}

func (s *Sessions) find(userID, messageID string) (models.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.sessions[userID] {
		if m.ID == messageID {
			return m, true
		}
	}
	return models.ChatMessage{}, false
}

// retryable reports whether resending the same text could succeed.
func retryable(err error) bool {
	return !errors.Is(err, models.ErrValidation) &&
		!errors.Is(err, models.ErrQuotaExceeded) &&
		!errors.Is(err, ErrDisabled)
}

func describe(r Result) string {
	parts := make([]string, 0, len(r.Foods))
	for _, f := range r.Foods {
		parts = append(parts, fmt.Sprintf("%s (%s, %d kcal)", f.Name, f.Weight, f.Calories))
	}
	return fmt.Sprintf("Found %d item(s): %s. Total %d kcal, %.1fg protein, %.1fg fat, %.1fg carbs.",
		len(r.Foods), strings.Join(parts, ", "), r.Totals.Calories, r.Totals.Protein, r.Totals.Fat, r.Totals.Carbs)
}
