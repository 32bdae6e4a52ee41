// Package messaging runs the WhatsApp conversation: inbound messages are analyzed or
// dispatched as commands, and weekly digests are pushed to WhatsApp users.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/config"
	"github.com/mamadbah2/nutritrack/internal/domain/models"
	"github.com/mamadbah2/nutritrack/internal/service/analysis"
	"github.com/mamadbah2/nutritrack/internal/service/records"
	"github.com/mamadbah2/nutritrack/internal/service/reporting"
	"github.com/mamadbah2/nutritrack/pkg/clients/anthropic"
	"github.com/mamadbah2/nutritrack/pkg/clients/whatsapp"
)

// UserPrefix marks user IDs that belong to WhatsApp senders.
const UserPrefix = "wa-"

const sendTimeout = 10 * time.Second

// ErrVerification is returned when a webhook verification request is rejected.
var ErrVerification = errors.New("webhook verification failed")

const helpText = `Send me what you ate, e.g. "2 eggs and a slice of toast", and I will estimate it.
log [breakfast|lunch|dinner|snack] - log the last estimate as a meal
today - totals of the current day
retry - analyze your last failed message again`

// UserID maps a WhatsApp number to a nutritrack user ID.
func UserID(phone string) string { return UserPrefix + phone }

// Phone returns the WhatsApp number of userID, if it is a WhatsApp user.
func Phone(userID string) (string, bool) {
	phone, ok := strings.CutPrefix(userID, UserPrefix)
	return phone, ok && phone != ""
}

// Service answers inbound WhatsApp messages and sends digests.
type Service struct {
	cfg      config.WhatsAppConfig
	client   whatsapp.Client
	sessions *analysis.Sessions
	analysis *analysis.Service
	records  *records.Store
	reports  *reporting.Service
	logger   *zap.Logger

	mu     sync.Mutex
	logged map[string]string
}

// NewService wires the messaging service.
func NewService(cfg config.WhatsAppConfig, client whatsapp.Client, sessions *analysis.Sessions, analysisSvc *analysis.Service, store *records.Store, reports *reporting.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		client:   client,
		sessions: sessions,
		analysis: analysisSvc,
		records:  store,
		reports:  reports,
		logger:   logger,
		logged:   make(map[string]string),
	}
}

// VerifyWebhookToken answers Meta's subscription challenge.
func (s *Service) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	if mode == "" || verifyToken == "" {
		return "", fmt.Errorf("%w: missing mode or verify token", ErrVerification)
	}
	if !strings.EqualFold(mode, "subscribe") {
		return "", fmt.Errorf("%w: unsupported hub.mode %s", ErrVerification, mode)
	}
	if verifyToken != s.cfg.VerifyToken {
		return "", fmt.Errorf("%w: invalid verify token", ErrVerification)
	}
	return challenge, nil
}

// HandleWebhook answers every inbound message of payload and returns the first
// delivery error. Status callbacks are ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload WebhookPayload) error {
	var firstErr error
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if err := s.handleInbound(ctx, msg); err != nil {
					s.logger.Error("failed to answer inbound message", zap.Error(err), zap.String("message_id", msg.ID))
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}
	return firstErr
}

func (s *Service) handleInbound(ctx context.Context, msg InboundMessage) error {
	if msg.From == "" {
		return nil
	}
	userID := UserID(msg.From)

	var reply string
	if body := msg.Body(); body == "" {
		reply = "I can only read text messages here. Describe your meal in words."
	} else {
		cmd := ParseCommand(body)
		s.logger.Info("inbound message",
			zap.String("user_id", userID),
			zap.String("command", string(cmd.Type)),
			zap.Strings("args", cmd.Args))
		reply = s.Respond(ctx, userID, cmd)
	}
	return s.send(ctx, msg.From, reply)
}

// Respond executes cmd for userID and returns the text to send back.
func (s *Service) Respond(ctx context.Context, userID string, cmd Command) string {
	switch cmd.Type {
	case CommandHelp:
		return helpText
	case CommandToday:
		return s.today(ctx, userID)
	case CommandLog:
		return s.logLast(ctx, userID, cmd)
	case CommandRetry:
		return s.retryLast(ctx, userID)
	default:
		exchange, err := s.sessions.Send(ctx, userID, cmd.Text)
		return s.exchangeReply(exchange, err)
	}
}

func (s *Service) today(ctx context.Context, userID string) string {
	store, err := s.records.ForUser(userID)
	if err != nil {
		return failureText(err)
	}
	record, err := store.ReadToday(ctx)
	if err != nil {
		return failureText(err)
	}
	if len(record.Meals) == 0 {
		return fmt.Sprintf("Nothing logged on %s yet.", record.Day)
	}
	t := record.Totals
	return fmt.Sprintf("%s: %d meal(s), %d kcal, %.1fg protein, %.1fg fat, %.1fg carbs.",
		record.Day, len(record.Meals), t.Calories, t.Protein, t.Fat, t.Carbs)
}

func (s *Service) logLast(ctx context.Context, userID string, cmd Command) string {
	mealType, err := cmd.MealType()
	if err != nil {
		return failureText(err)
	}
	history := s.sessions.History(userID)
	var last *models.ChatMessage
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleAssistant && len(history[i].Foods) > 0 {
			last = &history[i]
			break
		}
	}
	if last == nil {
		return "There is no estimate to log yet. Describe your meal first."
	}

	s.mu.Lock()
	if s.logged[userID] == last.ID {
		s.mu.Unlock()
		return "That estimate is already logged."
	}
	s.mu.Unlock()

	record, err := s.analysis.LogAnalysis(ctx, userID, mealType, last.Foods)
	if err != nil {
		return failureText(err)
	}

	s.mu.Lock()
	s.logged[userID] = last.ID
	s.mu.Unlock()

	return fmt.Sprintf("Logged %d item(s) as %s. %s total: %d kcal.", len(last.Foods), mealType, record.Day, record.Totals.Calories)
}

func (s *Service) retryLast(ctx context.Context, userID string) string {
	history := s.sessions.History(userID)
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != models.RoleUser {
			continue
		}
		if !msg.Delivery.CanRetry() {
			break
		}
		exchange, err := s.sessions.Retry(ctx, userID, msg.ID)
		return s.exchangeReply(exchange, err)
	}
	return "There is no failed message to retry."
}

func (s *Service) exchangeReply(exchange analysis.Exchange, err error) string {
	if err != nil {
		text := failureText(err)
		if exchange.Message.Delivery.CanRetry() {
			text += ` Reply "retry" to try again.`
		}
		return text
	}
	if exchange.Reply == nil {
		return "No estimate was produced."
	}
	return exchange.Reply.Content + ` Reply "log lunch" (or breakfast, dinner, snack) to save it.`
}

func failureText(err error) string {
	var quotaErr *models.QuotaExceededError
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &quotaErr):
		return fmt.Sprintf("You have used the %d analyses of your %s plan this month. Your quota resets on %s.",
			quotaErr.Limit, quotaErr.Plan, quotaErr.ResetsAt.Format("Mon, 02 Jan 2006"))
	case errors.As(err, &validationErr):
		return "Invalid " + validationErr.Error() + "."
	case errors.Is(err, analysis.ErrDisabled):
		return "Meal analysis is not available right now."
	case errors.Is(err, anthropic.ErrNoFoods):
		return "I could not find any food in that message. Try describing what you ate."
	case errors.Is(err, models.ErrStorage):
		return "Your data is temporarily unavailable. Please try again later."
	default:
		return "Something went wrong while analyzing your meal."
	}
}

func (s *Service) send(ctx context.Context, to, body string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, err := s.client.SendText(ctx, to, body)
	return err
}

// SendWeeklyDigests sends the weekly report of the week containing day to every
// WhatsApp user who logged at least one meal in it, and returns how many were sent.
func (s *Service) SendWeeklyDigests(ctx context.Context, day string) (int, error) {
	users, err := s.records.Users(ctx)
	if err != nil {
		return 0, err
	}
	var errs []error
	sent := 0
	for _, userID := range users {
		phone, ok := Phone(userID)
		if !ok {
			continue
		}
		report, err := s.reports.Weekly(ctx, userID, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("digest %s: %w", userID, err))
			continue
		}
		if report.DaysLogged == 0 {
			continue
		}
		if err := s.send(ctx, phone, reporting.Format(report)); err != nil {
			errs = append(errs, fmt.Errorf("digest %s: %w", userID, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}
