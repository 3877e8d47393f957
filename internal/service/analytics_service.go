package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"servechat/internal/domain"
	"servechat/internal/repository"
)

// AnalyticsService resume el uso por dia y por modelo.
type AnalyticsService struct {
	logger *zap.Logger
	usage  repository.UsageRepository
}

func NewAnalyticsService(logger *zap.Logger, usage repository.UsageRepository) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{logger: logger, usage: usage}
}

func (s *AnalyticsService) Enabled() bool {
	return s != nil && s.usage != nil
}

// Summary devuelve siempre la misma forma; sin persistencia viene vacia
// junto con ErrPersistenceDisabled.
func (s *AnalyticsService) Summary(ctx context.Context, userID string) (domain.UsageSummary, error) {
	empty := domain.UsageSummary{ByDay: []domain.DailyUsage{}, ByModel: []domain.ModelUsage{}}
	if !s.Enabled() {
		return empty, ErrPersistenceDisabled
	}

	summary, err := s.usage.Summary(ctx, userID)
	if err != nil {
		s.logger.Warn("usage summary failed", zap.String("user_id", userID), zap.Error(err))
		return empty, persistenceError("usage summary", err)
	}

	if summary.ByDay == nil {
		summary.ByDay = []domain.DailyUsage{}
	}
	if summary.ByModel == nil {
		summary.ByModel = []domain.ModelUsage{}
	}
	for i := range summary.ByDay {
		summary.ByDay[i].Tokens = summary.ByDay[i].TokensIn + summary.ByDay[i].TokensOut
	}
	sort.SliceStable(summary.ByDay, func(i, j int) bool {
		return summary.ByDay[i].Day.Before(summary.ByDay[j].Day)
	})
	sort.SliceStable(summary.ByModel, func(i, j int) bool {
		return summary.ByModel[i].Cost > summary.ByModel[j].Cost
	})
	return summary, nil
}
