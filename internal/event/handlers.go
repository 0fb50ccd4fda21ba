package event

import (
	"context"
	"log/slog"
)

func (s *Service) handleProductCreatedEvent(ctx context.Context, ev ProductCreatedEvent) error {
	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", ev.ProductID),
		slog.String("category", ev.Category),
		slog.Float64("price", ev.Price),
		slog.String("created_by", ev.CreatedBy),
	)
	return nil
}

func (s *Service) handleProductUpdatedEvent(ctx context.Context, ev ProductUpdatedEvent) error {
	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", ev.ProductID),
		slog.Any("fields", ev.Fields),
		slog.Int64("version", ev.Version),
	)
	return nil
}

func (s *Service) handleProductRatedEvent(ctx context.Context, ev ProductRatedEvent) error {
	s.logger.InfoContext(ctx, "product rated",
		slog.String("product_id", ev.ProductID),
		slog.Float64("score", ev.Score),
		slog.Float64("rating", ev.Rating),
		slog.Int("ratings_count", ev.RatingsCount),
	)
	return nil
}
