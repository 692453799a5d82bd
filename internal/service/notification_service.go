package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"investment_manager/internal/domain"
)

type NotificationType string

const (
	NotificationEmail NotificationType = "email"
	NotificationSlack NotificationType = "slack"
)

type EmailService interface {
	SendEmail(to, subject, body string) error
}

type SlackService interface {
	SendMessage(channel, message string) error
}

type NotificationMessage struct {
	Type      NotificationType
	Recipient string
	Subject   string
	Message   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// NotificationService delivers accrual summaries and maturity notices
// asynchronously so the accrual run never blocks on a slow channel.
type NotificationService struct {
	emailService EmailService
	slackService SlackService
	messageQueue chan NotificationMessage
	workers      int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

func NewNotificationService(
	emailService EmailService,
	slackService SlackService,
	workers int,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}

	s := &NotificationService{
		emailService: emailService,
		slackService: slackService,
		messageQueue: make(chan NotificationMessage, 1000),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	s.startWorkers()

	return s
}

// AccrualRunCompleted queues the run summary for the operations channel.
func (s *NotificationService) AccrualRunCompleted(ctx context.Context, run *domain.AccrualRun) {
	message := fmt.Sprintf(
		"Daily accrual run for %s finished: %d credited, %d skipped, %d matured, %d failed, %s interest credited.",
		run.Day, run.Processed, run.Skipped, run.Matured, run.Failed, run.InterestCredited,
	)

	s.enqueue(ctx, NotificationMessage{
		Type:      NotificationSlack,
		Recipient: "#investment-ops",
		Subject:   fmt.Sprintf("Accrual run %s", run.Day),
		Message:   message,
		Metadata: map[string]string{
			"day":    run.Day,
			"failed": fmt.Sprintf("%d", run.Failed),
		},
		CreatedAt: time.Now(),
	})
}

// InvestmentMatured queues a maturity notice for the investor.
func (s *NotificationService) InvestmentMatured(ctx context.Context, inv *domain.Investment) {
	message := fmt.Sprintf(
		"Your investment %s has matured with a final balance of %s (principal %s).",
		inv.ID, inv.Balance, inv.Amount,
	)

	s.enqueue(ctx, NotificationMessage{
		Type:      NotificationEmail,
		Recipient: inv.UserID,
		Subject:   "Investment matured",
		Message:   message,
		Metadata: map[string]string{
			"investment_id": inv.ID,
		},
		CreatedAt: time.Now(),
	})
}

func (s *NotificationService) enqueue(ctx context.Context, msg NotificationMessage) {
	select {
	case s.messageQueue <- msg:
		s.logger.Info("Notification queued",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.String("subject", msg.Subject))
	case <-ctx.Done():
		s.logger.Warn("Notification dropped, context canceled",
			slog.String("subject", msg.Subject))
	}
}

func (s *NotificationService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *NotificationService) worker(id int) {
	defer s.wg.Done()

	s.logger.Info("Notification worker started", slog.Int("worker_id", id))

	for {
		select {
		case msg := <-s.messageQueue:
			s.processNotification(msg, id)
		case <-s.shutdownChan:
			s.logger.Info("Notification worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

func (s *NotificationService) processNotification(msg NotificationMessage, workerID int) {
	startTime := time.Now()
	var err error

	switch msg.Type {
	case NotificationEmail:
		err = s.emailService.SendEmail(msg.Recipient, msg.Subject, msg.Message)
	case NotificationSlack:
		err = s.slackService.SendMessage(msg.Recipient, msg.Message)
	default:
		err = fmt.Errorf("unknown notification type: %s", msg.Type)
	}

	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Failed to send notification",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	} else {
		s.logger.Info("Notification sent successfully",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	}
}

func (s *NotificationService) Shutdown(ctx context.Context) error {
	close(s.shutdownChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MockEmailService logs instead of sending. Used until a real provider is
// wired in.
type MockEmailService struct{}

func (m *MockEmailService) SendEmail(to, subject, body string) error {
	return nil
}

// MockSlackService logs instead of sending.
type MockSlackService struct{}

func (m *MockSlackService) SendMessage(channel, message string) error {
	return nil
}
