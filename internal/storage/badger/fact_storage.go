package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// FactStorage implements interfaces.FactStorage for Badger
type FactStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewFactStorage creates a new FactStorage instance
func NewFactStorage(db *BadgerDB, logger arbor.ILogger) *FactStorage {
	return &FactStorage{db: db, logger: logger}
}

func (s *FactStorage) SaveClaim(ctx context.Context, claim *models.Claim) error {
	if err := validateFact(claim.ID, claim.TenantID); err != nil {
		return err
	}
	stampFact(&claim.FactBase)
	if err := s.db.Store().Upsert(claim.ID, claim); err != nil {
		return fmt.Errorf("failed to save claim: %w", err)
	}
	return nil
}

func (s *FactStorage) SaveMetric(ctx context.Context, metric *models.Metric) error {
	if err := validateFact(metric.ID, metric.TenantID); err != nil {
		return err
	}
	stampFact(&metric.FactBase)
	if err := s.db.Store().Upsert(metric.ID, metric); err != nil {
		return fmt.Errorf("failed to save metric: %w", err)
	}
	return nil
}

func (s *FactStorage) SaveConstraint(ctx context.Context, constraint *models.Constraint) error {
	if err := validateFact(constraint.ID, constraint.TenantID); err != nil {
		return err
	}
	stampFact(&constraint.FactBase)
	if err := s.db.Store().Upsert(constraint.ID, constraint); err != nil {
		return fmt.Errorf("failed to save constraint: %w", err)
	}
	return nil
}

func (s *FactStorage) SaveRisk(ctx context.Context, risk *models.Risk) error {
	if err := validateFact(risk.ID, risk.TenantID); err != nil {
		return err
	}
	stampFact(&risk.FactBase)
	if err := s.db.Store().Upsert(risk.ID, risk); err != nil {
		return fmt.Errorf("failed to save risk: %w", err)
	}
	return nil
}

func (s *FactStorage) GetClaim(ctx context.Context, tenantID, id string) (*models.Claim, error) {
	var claim models.Claim
	if err := s.db.Store().Get(id, &claim); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	if claim.TenantID != tenantID {
		return nil, interfaces.ErrNotFound
	}
	return &claim, nil
}

func (s *FactStorage) GetMetric(ctx context.Context, tenantID, id string) (*models.Metric, error) {
	var metric models.Metric
	if err := s.db.Store().Get(id, &metric); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get metric: %w", err)
	}
	if metric.TenantID != tenantID {
		return nil, interfaces.ErrNotFound
	}
	return &metric, nil
}

func (s *FactStorage) UpdateClaim(ctx context.Context, claim *models.Claim) error {
	if _, err := s.GetClaim(ctx, claim.TenantID, claim.ID); err != nil {
		return err
	}
	if err := s.db.Store().Update(claim.ID, claim); err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	return nil
}

func (s *FactStorage) UpdateMetric(ctx context.Context, metric *models.Metric) error {
	if _, err := s.GetMetric(ctx, metric.TenantID, metric.ID); err != nil {
		return err
	}
	if err := s.db.Store().Update(metric.ID, metric); err != nil {
		return fmt.Errorf("failed to update metric: %w", err)
	}
	return nil
}

func (s *FactStorage) DeleteClaim(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetClaim(ctx, tenantID, id); err != nil {
		return err
	}
	return s.db.Store().Delete(id, &models.Claim{})
}

func (s *FactStorage) DeleteMetric(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetMetric(ctx, tenantID, id); err != nil {
		return err
	}
	return s.db.Store().Delete(id, &models.Metric{})
}

func factQuery(tenantID, versionID, processContext string) *badgerhold.Query {
	q := badgerhold.Where("DocumentVersionID").Eq(versionID).Index("DocumentVersionID").
		And("TenantID").Eq(tenantID)
	if processContext != "" {
		q = q.And("ProcessContext").Eq(processContext)
	}
	return q
}

func (s *FactStorage) ListClaimsForVersion(ctx context.Context, tenantID, versionID, processContext string) ([]*models.Claim, error) {
	var claims []models.Claim
	if err := s.db.Store().Find(&claims, factQuery(tenantID, versionID, processContext)); err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	result := make([]*models.Claim, len(claims))
	for i := range claims {
		result[i] = &claims[i]
	}
	return result, nil
}

func (s *FactStorage) ListMetricsForVersion(ctx context.Context, tenantID, versionID, processContext string) ([]*models.Metric, error) {
	var metrics []models.Metric
	if err := s.db.Store().Find(&metrics, factQuery(tenantID, versionID, processContext)); err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	result := make([]*models.Metric, len(metrics))
	for i := range metrics {
		result[i] = &metrics[i]
	}
	return result, nil
}

func (s *FactStorage) ListConstraintsForVersion(ctx context.Context, tenantID, versionID, processContext string) ([]*models.Constraint, error) {
	var constraints []models.Constraint
	if err := s.db.Store().Find(&constraints, factQuery(tenantID, versionID, processContext)); err != nil {
		return nil, fmt.Errorf("failed to list constraints: %w", err)
	}
	result := make([]*models.Constraint, len(constraints))
	for i := range constraints {
		result[i] = &constraints[i]
	}
	return result, nil
}

func (s *FactStorage) ListRisksForVersion(ctx context.Context, tenantID, versionID, processContext string) ([]*models.Risk, error) {
	var risks []models.Risk
	if err := s.db.Store().Find(&risks, factQuery(tenantID, versionID, processContext)); err != nil {
		return nil, fmt.Errorf("failed to list risks: %w", err)
	}
	result := make([]*models.Risk, len(risks))
	for i := range risks {
		result[i] = &risks[i]
	}
	return result, nil
}

func (s *FactStorage) DeleteFactsForRun(ctx context.Context, tenantID, runID string) (int, error) {
	query := badgerhold.Where("ExtractionRunID").Eq(runID).Index("ExtractionRunID").
		And("TenantID").Eq(tenantID)
	deleted := 0
	for _, target := range []interface{}{
		&models.Claim{}, &models.Metric{}, &models.Constraint{}, &models.Risk{},
	} {
		count, err := s.db.Store().Count(target, query)
		if err != nil {
			return deleted, fmt.Errorf("failed to count facts for run: %w", err)
		}
		if err := s.db.Store().DeleteMatching(target, query); err != nil {
			return deleted, fmt.Errorf("failed to delete facts for run: %w", err)
		}
		deleted += int(count)
	}
	return deleted, nil
}

func (s *FactStorage) DeleteClaimsForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	return s.deleteForVersion(&models.Claim{}, tenantID, versionID)
}

func (s *FactStorage) DeleteMetricsForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	return s.deleteForVersion(&models.Metric{}, tenantID, versionID)
}

func (s *FactStorage) DeleteConstraintsForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	return s.deleteForVersion(&models.Constraint{}, tenantID, versionID)
}

func (s *FactStorage) DeleteRisksForVersion(ctx context.Context, tenantID, versionID string) (int, error) {
	return s.deleteForVersion(&models.Risk{}, tenantID, versionID)
}

func (s *FactStorage) deleteForVersion(target interface{}, tenantID, versionID string) (int, error) {
	query := factQuery(tenantID, versionID, "")
	count, err := s.db.Store().Count(target, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	if err := s.db.Store().DeleteMatching(target, query); err != nil {
		return 0, fmt.Errorf("failed to delete facts: %w", err)
	}
	return int(count), nil
}

func validateFact(id, tenantID string) error {
	if id == "" {
		return fmt.Errorf("fact ID is required")
	}
	if tenantID == "" {
		return fmt.Errorf("fact tenant ID is required")
	}
	return nil
}

func stampFact(base *models.FactBase) {
	if base.CreatedAt.IsZero() {
		base.CreatedAt = time.Now()
	}
	if base.Certainty == "" {
		base.Certainty = models.CertaintyProbable
	}
	if base.SourceReliability == "" {
		base.SourceReliability = models.ReliabilityUnknown
	}
}
