// Package alerts runs the nightly farm health checks: feed running low and
// egg production dropping against the previous day.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/settings"
	"github.com/avionyx/farmhand/pkg/clients/notify"
)

// Service evaluates alert conditions and pushes findings to the notifier.
type Service struct {
	store    repository.Store
	settings *settings.Service
	notifier notify.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the alert checks.
func NewService(store repository.Store, notifier notify.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		settings: settings.NewService(store),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run evaluates every alert condition and sends one message per finding.
// Failures are logged, not returned, so one bad check never blocks the rest.
func (s *Service) Run(ctx context.Context) {
	for _, check := range []func(context.Context) (*notify.Message, error){
		s.checkLowFeed,
		s.checkEggDrop,
	} {
		msg, err := check(ctx)
		if err != nil {
			s.logger.Error("alert check failed", zap.Error(err))
			continue
		}
		if msg == nil {
			continue
		}
		if err := s.notifier.Send(ctx, *msg); err != nil {
			s.logger.Error("failed to send alert", zap.String("title", msg.Title), zap.Error(err))
		} else {
			s.logger.Info("alert sent", zap.String("title", msg.Title))
		}
	}
}

// checkLowFeed flags feed items whose stock fell below the configured
// threshold in kilograms.
func (s *Service) checkLowFeed(ctx context.Context) (*notify.Message, error) {
	threshold := s.settings.Float(ctx, settings.KeyFeedLowThreshold, settings.DefaultFeedLowThreshold)

	items, err := s.store.ListInventoryItems(ctx, repository.InventoryFilter{Type: models.ItemFeed})
	if err != nil {
		return nil, fmt.Errorf("failed to list feed items: %w", err)
	}

	var low []string
	for _, item := range items {
		if item.Quantity < threshold {
			low = append(low, fmt.Sprintf("%s: %.1f %s left", item.Name, item.Quantity, item.Unit))
		}
	}
	if len(low) == 0 {
		return nil, nil
	}
	return &notify.Message{
		Title: "Low feed stock",
		Body:  fmt.Sprintf("Feed below %.0f kg:\n%s", threshold, strings.Join(low, "\n")),
		Level: "warning",
	}, nil
}

// checkEggDrop compares today's good egg count against the most recent prior
// day that recorded eggs and flags drops past the threshold percentage.
func (s *Service) checkEggDrop(ctx context.Context) (*notify.Message, error) {
	threshold := s.settings.Float(ctx, settings.KeyEggDropThreshold, settings.DefaultEggDropThreshold)
	today := models.DateKey(s.now())

	current, err := s.store.DailyByDate(ctx, today)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load today's aggregate: %w", err)
	}
	if current.EggsGood == 0 {
		return nil, nil
	}

	prior, err := s.store.LatestDailyBefore(ctx, today)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load prior aggregate: %w", err)
	}
	if prior.EggsGood == 0 {
		return nil, nil
	}

	drop := float64(prior.EggsGood-current.EggsGood) / float64(prior.EggsGood) * 100
	if drop < threshold {
		return nil, nil
	}
	return &notify.Message{
		Title: "Egg production drop",
		Body: fmt.Sprintf("Good eggs fell %.0f%%: %d on %s vs %d on %s.",
			drop, current.EggsGood, current.Date, prior.EggsGood, prior.Date),
		Level: "warning",
	}, nil
}
