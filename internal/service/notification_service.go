package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/pkg/apperror"
	"github.com/ignatzorin/shop-backend/internal/repository"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, accountID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, accountID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, accountID uuid.UUID) error
	CountUnread(ctx context.Context, accountID uuid.UUID) (int, error)
}

// NotificationService хранит события, отправленные аккаунту в реальном времени.
type NotificationService struct {
	repo NotificationRepository
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// CreateNotification сохраняет событие как уведомление. Реализует ws.NotificationSaver.
func (s *NotificationService) CreateNotification(ctx context.Context, accountID uuid.UUID, event string, data any) error {
	payload, err := json.Marshal(map[string]any{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		AccountID: accountID,
		Payload:   payload,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("notification service: %w", err)
	}
	return nil
}

// List возвращает уведомления аккаунта.
func (s *NotificationService) List(ctx context.Context, accountID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := s.repo.List(ctx, accountID, limit, offset, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}
	return notifications, nil
}

// MarkAsRead отмечает уведомление как прочитанное. Чужое уведомление выглядит как отсутствующее.
func (s *NotificationService) MarkAsRead(ctx context.Context, id, accountID uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, id, accountID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено")
		}
		return fmt.Errorf("notification service: %w", err)
	}
	return nil
}

// MarkAllAsRead отмечает все уведомления аккаунта как прочитанные.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, accountID uuid.UUID) error {
	if err := s.repo.MarkAllAsRead(ctx, accountID); err != nil {
		return fmt.Errorf("notification service: %w", err)
	}
	return nil
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, accountID uuid.UUID) (int, error) {
	count, err := s.repo.CountUnread(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("notification service: %w", err)
	}
	return count, nil
}
