package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/campushelp/helpdesk-api/internal/dto"
	"github.com/campushelp/helpdesk-api/internal/models"
	"github.com/campushelp/helpdesk-api/internal/observability"
	"github.com/campushelp/helpdesk-api/internal/repository"
)

const notificationBufferSize = 16

// Event kinds fanned out by the dispatcher.
const (
	EventTicketCreated      = "ticket_created"
	EventTicketAssigned     = "ticket_assigned"
	EventTicketResolved     = "ticket_resolved"
	EventTicketAcknowledged = "ticket_acknowledged"
	EventChatMessage        = "chat_message"
	EventAnnouncement       = "announcement"
)

// Event describes a notification fan-out request. Recipients are explicit
// user IDs; BroadcastRole instead targets every active account holding the
// role (empty role means everyone). The actor is always excluded from the
// resolved recipient set.
type Event struct {
	Kind          string
	TicketID      *uint
	ActorID       uint
	Recipients    []uint
	BroadcastRole string
	Title         string
	Body          string
	Type          string
}

// NotificationService persists notification rows per recipient and streams
// them to live SSE subscribers. Delivery into storage is at-least-once; a
// failed insert for one recipient is logged and does not abort the rest.
type NotificationService interface {
	Dispatch(ctx context.Context, event Event) (int, error)
	List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	users       repository.UserRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(repo repository.NotificationRepository, users repository.UserRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		users:       users,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/campushelp/helpdesk-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Dispatch resolves the recipient set, applies per-user preference flags and
// writes one notification row per remaining recipient. Returns the number of
// rows written.
func (s *notificationService) Dispatch(ctx context.Context, event Event) (int, error) {
	title := strings.TrimSpace(s.sanitizer.Sanitize(event.Title))
	body := strings.TrimSpace(s.sanitizer.Sanitize(event.Body))
	if title == "" {
		return 0, validationf("notification title is required")
	}
	if event.Type == "" {
		event.Type = models.NotificationInfo
	}

	attrs := []attribute.KeyValue{
		attribute.String("notification.kind", event.Kind),
		attribute.String("notification.type", event.Type),
	}
	spanCtx, span := s.tracer.Start(ctx, "notifications.dispatch", trace.WithAttributes(attrs...))
	defer span.End()

	recipients, err := s.resolveRecipients(spanCtx, event)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	delivered := 0
	for _, recipient := range recipients {
		if s.optedOut(recipient, event.Kind) {
			observability.NotificationsSuppressed().WithLabelValues(event.Kind).Inc()
			continue
		}

		model := models.Notification{
			UserID:   recipient.ID,
			Title:    title,
			Body:     body,
			Type:     event.Type,
			TicketID: event.TicketID,
		}
		if err := s.repo.Create(spanCtx, &model); err != nil {
			// At-least-once into storage: keep going for the rest of the set.
			s.logger.Error().Err(err).Uint("user_id", recipient.ID).Str("kind", event.Kind).Msg("failed to persist notification")
			continue
		}
		delivered++

		response := dto.NewNotificationResponse(model)
		s.broker.broadcast(recipient.ID, response)
		if err := s.publish(spanCtx, response); err != nil {
			s.logger.Warn().Err(err).Msg("failed to relay notification")
		}
	}

	observability.NotificationsDispatched().WithLabelValues(event.Kind).Add(float64(delivered))

	return delivered, nil
}

func (s *notificationService) resolveRecipients(ctx context.Context, event Event) ([]models.User, error) {
	seen := make(map[uint]struct{})
	var recipients []models.User

	appendUser := func(user models.User) {
		if user.ID == event.ActorID {
			return
		}
		if !user.IsActive() {
			return
		}
		if _, dup := seen[user.ID]; dup {
			return
		}
		seen[user.ID] = struct{}{}
		recipients = append(recipients, user)
	}

	for _, id := range event.Recipients {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Uint("user_id", id).Msg("notification recipient not found")
			continue
		}
		appendUser(user)
	}

	if event.BroadcastRole != "" || len(event.Recipients) == 0 && event.Kind == EventAnnouncement {
		roles := []string{event.BroadcastRole}
		if event.BroadcastRole == "" {
			roles = []string{models.RoleStudent, models.RoleFaculty, models.RoleResolver, models.RoleAdmin}
		}
		for _, role := range roles {
			users, err := s.users.ListActiveByRole(ctx, role)
			if err != nil {
				return nil, dependency("list broadcast recipients", err)
			}
			for _, user := range users {
				appendUser(user)
			}
		}
	}

	return recipients, nil
}

func (s *notificationService) optedOut(user models.User, kind string) bool {
	switch kind {
	case EventChatMessage:
		return !user.NotifyChatMessages
	case EventTicketCreated, EventTicketAssigned, EventTicketResolved, EventTicketAcknowledged:
		return !user.NotifyTicketUpdates
	default:
		return false
	}
}

func (s *notificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, dependency("list notifications", err)
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	notification, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return dto.NotificationResponse{}, dependency("mark notification read", err)
	}
	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.StreamClientsActive().Inc()

	cleanup := func() {
		s.broker.unsubscribe(userID, channel)
		observability.StreamClientsActive().Dec()
	}

	return channel, cleanup
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleRelay([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "helpdesk-notifications", func(msg *nats.Msg) {
		s.handleRelay(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleRelay(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification relay payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broker.broadcast(event.Notification.UserID, event.Notification)
}

func (b *notificationBroker) subscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers := b.subscribers[userID]
	for ch := range subscribers {
		select {
		case ch <- notification:
		default:
		}
	}
}
