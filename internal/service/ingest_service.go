package service

import (
	"context"
	"time"

	"license-service/internal/broker"
	"license-service/internal/models"
	"license-service/internal/store"
	"license-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestService upserts externally sourced brand batches and keeps the
// per-system counts in sync
type IngestService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewIngestService creates a new ingestion service
func NewIngestService(st *store.Store, eventPublisher *broker.EventPublisher) *IngestService {
	return &IngestService{
		store:          st,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// BrandRecord is one incoming webhook record. Only name, system and tier
// are required; everything else is optional and validated here once.
type BrandRecord struct {
	Name        string  `json:"name"`
	System      string  `json:"system"`
	Tier        string  `json:"tier"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Emoji       string  `json:"emoji"`
	Fee         *string `json:"fee"`
	Royalty     *string `json:"royalty"`
	Division    *string `json:"division"`
	VaultMeshID *string `json:"vault_mesh_id"`
	ParentID    *string `json:"parent_id"`
	UsePhrase   *string `json:"use_phrase"`
	Subnodes    *string `json:"subnodes"`
	Metadata    *string `json:"metadata"`
}

// IngestOutcome describes a successfully written record
type IngestOutcome struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

// IngestError describes one record that failed
type IngestError struct {
	Brand string `json:"brand"`
	Error string `json:"error"`
}

// IngestResult is the batch-level response
type IngestResult struct {
	Success  bool `json:"success"`
	Inserted int  `json:"inserted"`
	Errors   int  `json:"errors"`
	Details  struct {
		Inserted []IngestOutcome `json:"inserted"`
		Errors   []IngestError   `json:"errors"`
	} `json:"details"`
}

// IngestBrands upserts each record by its (name, system) natural key.
// Every record is its own atomic unit: one record's failure neither
// aborts the batch nor rolls back earlier writes. The owning system's
// denormalized count is recomputed after each write.
func (s *IngestService) IngestBrands(ctx context.Context, records []BrandRecord) (*IngestResult, error) {
	ctx, span := util.StartSpan(ctx, "IngestService.IngestBrands")
	defer span.End()

	result := &IngestResult{Success: true}
	result.Details.Inserted = []IngestOutcome{}
	result.Details.Errors = []IngestError{}

	var created, updated int
	systems := map[string]bool{}

	for _, rec := range records {
		if rec.Name == "" || rec.System == "" || rec.Tier == "" {
			util.IngestErrorsTotal.Inc()
			result.Details.Errors = append(result.Details.Errors, IngestError{
				Brand: nameOrUnknown(rec.Name),
				Error: "Missing required fields: name, system, tier",
			})
			continue
		}

		outcome, err := s.upsertBrand(ctx, rec)
		if err != nil {
			util.IngestErrorsTotal.Inc()
			s.logger.Error("Brand upsert failed",
				zap.String("brand", rec.Name),
				zap.String("system", rec.System),
				zap.Error(err))
			result.Details.Errors = append(result.Details.Errors, IngestError{
				Brand: rec.Name,
				Error: "Failed to write brand record",
			})
			continue
		}

		util.BrandsIngestedTotal.WithLabelValues(outcome.Action).Inc()
		result.Details.Inserted = append(result.Details.Inserted, *outcome)
		if outcome.Action == "created" {
			created++
		} else {
			updated++
		}
		systems[rec.System] = true

		if err := s.store.RefreshSystemCount(ctx, rec.System); err != nil {
			s.logger.Error("Failed to refresh system count",
				zap.String("system", rec.System), zap.Error(err))
		}
	}

	result.Inserted = len(result.Details.Inserted)
	result.Errors = len(result.Details.Errors)

	if s.eventPublisher != nil && result.Inserted > 0 {
		keys := make([]string, 0, len(systems))
		for k := range systems {
			keys = append(keys, k)
		}
		event := &models.BrandsIngestedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeBrandsIngested,
				Timestamp: time.Now(),
			},
			Inserted: created,
			Updated:  updated,
			Errors:   result.Errors,
			Systems:  keys,
		}
		if err := s.eventPublisher.PublishBrandsIngested(ctx, event); err != nil {
			s.logger.Error("Failed to publish BrandsIngested event", zap.Error(err))
		}
	}

	return result, nil
}

// upsertBrand updates a matching active brand in place or creates a new one
func (s *IngestService) upsertBrand(ctx context.Context, rec BrandRecord) (*IngestOutcome, error) {
	brand := &models.Brand{
		Name:        rec.Name,
		System:      rec.System,
		Tier:        rec.Tier,
		Category:    rec.Category,
		Description: rec.Description,
		Emoji:       rec.Emoji,
		Fee:         rec.Fee,
		Royalty:     rec.Royalty,
		Division:    rec.Division,
		VaultMeshID: rec.VaultMeshID,
		ParentID:    rec.ParentID,
		UsePhrase:   rec.UsePhrase,
		Subnodes:    rec.Subnodes,
		Metadata:    rec.Metadata,
	}

	existing, err := s.store.FindActiveBrand(ctx, rec.Name, rec.System)
	if err != nil && err != store.ErrNotFound {
		return nil, err
	}

	if existing != nil {
		brand.ID = existing.ID
		if err := s.store.UpdateBrand(ctx, brand); err != nil {
			return nil, err
		}
		return &IngestOutcome{ID: existing.ID, Name: rec.Name, Action: "updated"}, nil
	}

	if err := s.store.InsertBrand(ctx, brand); err != nil {
		return nil, err
	}
	return &IngestOutcome{ID: brand.ID, Name: rec.Name, Action: "created"}, nil
}

// DeleteBrands soft-deletes the given brands and refreshes the counts of
// every system they belonged to
func (s *IngestService) DeleteBrands(ctx context.Context, ids []int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "IngestService.DeleteBrands")
	defer span.End()

	if len(ids) == 0 {
		return 0, invalid("ids", "invalid or empty brand IDs array")
	}

	systems, err := s.store.SystemsForBrands(ctx, ids)
	if err != nil {
		return 0, err
	}

	deleted, err := s.store.SoftDeleteBrands(ctx, ids)
	if err != nil {
		return 0, err
	}

	for _, sys := range systems {
		if err := s.store.RefreshSystemCount(ctx, sys); err != nil {
			s.logger.Error("Failed to refresh system count after delete",
				zap.String("system", sys), zap.Error(err))
		}
	}

	s.logger.Info("Brands soft-deleted", zap.Int64("count", deleted))
	return deleted, nil
}

func nameOrUnknown(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}
