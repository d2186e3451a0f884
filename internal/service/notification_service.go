package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/raffle-service/internal/config"
	"github.com/spec-kit/raffle-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventGoalMet, n.handleGoalMet)
	n.dispatcher.Subscribe(events.EventWinnerSelected, n.handleWinnerSelected)
	n.dispatcher.Subscribe(events.EventRaffleCancelled, n.handleRaffleCancelled)
	n.dispatcher.Subscribe(events.EventRaffleNotMet, n.handleRaffleNotMet)
	n.dispatcher.Subscribe(events.EventRaffleExtended, n.handleRaffleExtended)
}

func (n *NotificationService) handleGoalMet(ctx context.Context, event events.Event) error {
	n.logger.Info("GoalMet", zap.String("raffle_id", event.RaffleID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleWinnerSelected(ctx context.Context, event events.Event) error {
	n.logger.Info("WinnerSelected", zap.String("raffle_id", event.RaffleID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRaffleCancelled(ctx context.Context, event events.Event) error {
	n.logger.Info("RaffleCancelled", zap.String("raffle_id", event.RaffleID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRaffleNotMet(ctx context.Context, event events.Event) error {
	n.logger.Info("RaffleNotMet", zap.String("raffle_id", event.RaffleID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRaffleExtended(ctx context.Context, event events.Event) error {
	n.logger.Info("RaffleExtended", zap.String("raffle_id", event.RaffleID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("raffle_id", event.RaffleID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("raffle_id", event.RaffleID),
		zap.String("event_type", string(event.Type)))
}
