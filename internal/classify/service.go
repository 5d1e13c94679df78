package classify

import (
	"context"
	"log/slog"

	"packtrack/internal/model"
)

// Fallback values used when classification fails.
const (
	FallbackName              = "Unidentified Item"
	FallbackDescriptionPrefix = "Could not analyze item. "
	FallbackTag               = "unknown"
)

// Fallback returns the classification used when the service cannot be
// reached or returns something unusable.
func Fallback(description string) Classification {
	return Classification{
		Name:        FallbackName,
		Description: FallbackDescriptionPrefix + description,
		Tags:        []string{FallbackTag},
	}
}

// Service wraps a Classifier so its callers always get a usable result.
// A nil Classifier behaves like one that always fails.
type Service struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewService creates a Service. logger may be nil.
func NewService(classifier Classifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{classifier: classifier, logger: logger}
}

// ClassifyItem never fails: on any error it logs a warning and returns
// Fallback(description).
func (s *Service) ClassifyItem(ctx context.Context, image []byte, description string) Classification {
	if s.classifier == nil {
		s.logger.Warn("no classifier configured, using fallback")
		return Fallback(description)
	}

	c, err := s.classifier.Classify(ctx, image, description)
	if err != nil {
		s.logger.Warn("classification failed, using fallback",
			"transient", IsTransient(err),
			"error", err)
		return Fallback(description)
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

// SearchItems returns matching item IDs, or an empty list on any error.
func (s *Service) SearchItems(ctx context.Context, query string, items []model.Item) []string {
	if s.classifier == nil {
		s.logger.Warn("no classifier configured, search returns nothing")
		return []string{}
	}

	ids, err := s.classifier.Search(ctx, query, items)
	if err != nil {
		s.logger.Warn("search failed, returning no results",
			"transient", IsTransient(err),
			"error", err)
		return []string{}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}
