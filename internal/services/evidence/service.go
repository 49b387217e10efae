// Package evidence implements span, claim and metric CRUD plus evidence
// packs and their structured export.
package evidence

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
	"github.com/ternarybob/indicium/internal/models"
)

// Service exposes evidence-level operations to the API surface
type Service struct {
	spanStorage     interfaces.SpanStorage
	factStorage     interfaces.FactStorage
	projectStorage  interfaces.ProjectStorage
	versionStorage  interfaces.VersionStorage
	documentStorage interfaces.DocumentStorage
	logger          arbor.ILogger
}

// NewService creates an evidence service
func NewService(
	spanStorage interfaces.SpanStorage,
	factStorage interfaces.FactStorage,
	projectStorage interfaces.ProjectStorage,
	versionStorage interfaces.VersionStorage,
	documentStorage interfaces.DocumentStorage,
	logger arbor.ILogger,
) *Service {
	return &Service{
		spanStorage:     spanStorage,
		factStorage:     factStorage,
		projectStorage:  projectStorage,
		versionStorage:  versionStorage,
		documentStorage: documentStorage,
		logger:          logger,
	}
}

// CreateSpan persists a caller-authored span against a version. The stable
// hash is computed here, so manual spans dedupe exactly like generated ones.
func (s *Service) CreateSpan(ctx context.Context, principal models.Principal, versionID string, locator models.Locator, spanType models.SpanType, textContent string) (*models.Span, error) {
	if err := locator.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.versionStorage.GetVersion(ctx, principal.TenantID, versionID); err != nil {
		return nil, err
	}
	if spanType == "" {
		spanType = models.SpanTypeText
	}

	span := &models.Span{
		ID:                common.NewID(common.PrefixSpan),
		TenantID:          principal.TenantID,
		DocumentVersionID: versionID,
		TextContent:       textContent,
		Locator:           locator,
		SpanType:          spanType,
		SpanHash:          models.ComputeSpanHash(locator, textContent),
	}
	stored, _, err := s.spanStorage.UpsertSpan(ctx, span)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// CreateClaim persists a caller-authored claim
func (s *Service) CreateClaim(ctx context.Context, principal models.Principal, claim *models.Claim) (*models.Claim, error) {
	if _, err := s.versionStorage.GetVersion(ctx, principal.TenantID, claim.DocumentVersionID); err != nil {
		return nil, err
	}
	claim.ID = common.NewID(common.PrefixClaim)
	claim.TenantID = principal.TenantID
	if claim.ExtractionRunID == "" {
		claim.ExtractionRunID = "manual:" + principal.ActorID
	}
	if err := s.factStorage.SaveClaim(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// CreateMetric persists a caller-authored metric
func (s *Service) CreateMetric(ctx context.Context, principal models.Principal, metric *models.Metric) (*models.Metric, error) {
	if _, err := s.versionStorage.GetVersion(ctx, principal.TenantID, metric.DocumentVersionID); err != nil {
		return nil, err
	}
	metric.ID = common.NewID(common.PrefixMetric)
	metric.TenantID = principal.TenantID
	if metric.ExtractionRunID == "" {
		metric.ExtractionRunID = "manual:" + principal.ActorID
	}
	if err := s.factStorage.SaveMetric(ctx, metric); err != nil {
		return nil, err
	}
	return metric, nil
}

// GetSpan returns one span
func (s *Service) GetSpan(ctx context.Context, principal models.Principal, spanID string) (*models.Span, error) {
	return s.spanStorage.GetSpan(ctx, principal.TenantID, spanID)
}

// ListSpans lists a version's spans
func (s *Service) ListSpans(ctx context.Context, principal models.Principal, versionID string) ([]*models.Span, error) {
	if _, err := s.versionStorage.GetVersion(ctx, principal.TenantID, versionID); err != nil {
		return nil, err
	}
	return s.spanStorage.ListSpansForVersion(ctx, principal.TenantID, versionID)
}

// DeleteSpan removes one span
func (s *Service) DeleteSpan(ctx context.Context, principal models.Principal, spanID string) error {
	return s.spanStorage.DeleteSpan(ctx, principal.TenantID, spanID)
}

// GetClaim returns one claim
func (s *Service) GetClaim(ctx context.Context, principal models.Principal, claimID string) (*models.Claim, error) {
	return s.factStorage.GetClaim(ctx, principal.TenantID, claimID)
}

// UpdateClaim persists caller edits to a claim
func (s *Service) UpdateClaim(ctx context.Context, principal models.Principal, claim *models.Claim) error {
	claim.TenantID = principal.TenantID
	return s.factStorage.UpdateClaim(ctx, claim)
}

// DeleteClaim removes one claim
func (s *Service) DeleteClaim(ctx context.Context, principal models.Principal, claimID string) error {
	return s.factStorage.DeleteClaim(ctx, principal.TenantID, claimID)
}

// GetMetric returns one metric
func (s *Service) GetMetric(ctx context.Context, principal models.Principal, metricID string) (*models.Metric, error) {
	return s.factStorage.GetMetric(ctx, principal.TenantID, metricID)
}

// UpdateMetric persists caller edits to a metric
func (s *Service) UpdateMetric(ctx context.Context, principal models.Principal, metric *models.Metric) error {
	metric.TenantID = principal.TenantID
	return s.factStorage.UpdateMetric(ctx, metric)
}

// DeleteMetric removes one metric
func (s *Service) DeleteMetric(ctx context.Context, principal models.Principal, metricID string) error {
	return s.factStorage.DeleteMetric(ctx, principal.TenantID, metricID)
}

// CreatePack creates a named evidence pack
func (s *Service) CreatePack(ctx context.Context, principal models.Principal, name, description, projectID string, spanIDs, claimIDs, metricIDs []string) (*models.EvidencePack, error) {
	pack := &models.EvidencePack{
		ID:          common.NewID(common.PrefixPack),
		TenantID:    principal.TenantID,
		Name:        name,
		Description: description,
		ProjectID:   projectID,
		SpanIDs:     spanIDs,
		ClaimIDs:    claimIDs,
		MetricIDs:   metricIDs,
		CreatedBy:   principal.ActorID,
	}
	if err := s.projectScopeCheck(ctx, principal, projectID); err != nil {
		return nil, err
	}
	if err := s.projectStorage.SavePack(ctx, pack); err != nil {
		return nil, err
	}
	return pack, nil
}

// GetPack returns one evidence pack
func (s *Service) GetPack(ctx context.Context, principal models.Principal, packID string) (*models.EvidencePack, error) {
	return s.projectStorage.GetPack(ctx, principal.TenantID, packID)
}

// ListPacks lists the tenant's evidence packs
func (s *Service) ListPacks(ctx context.Context, principal models.Principal, opts *interfaces.ListOptions) ([]*models.EvidencePack, error) {
	return s.projectStorage.ListPacks(ctx, principal.TenantID, opts)
}

// UpdatePack replaces the pack's member lists
func (s *Service) UpdatePack(ctx context.Context, principal models.Principal, pack *models.EvidencePack) error {
	existing, err := s.projectStorage.GetPack(ctx, principal.TenantID, pack.ID)
	if err != nil {
		return err
	}
	pack.TenantID = principal.TenantID
	pack.CreatedAt = existing.CreatedAt
	pack.CreatedBy = existing.CreatedBy
	return s.projectStorage.UpdatePack(ctx, pack)
}

// DeletePack removes one evidence pack
func (s *Service) DeletePack(ctx context.Context, principal models.Principal, packID string) error {
	return s.projectStorage.DeletePack(ctx, principal.TenantID, packID)
}

// PackExport is the materialized export tree of an evidence pack
type PackExport struct {
	PackID      string                   `json:"pack_id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	ExportedAt  time.Time                `json:"exported_at"`
	Spans       []map[string]interface{} `json:"spans"`
	Claims      []*models.Claim          `json:"claims"`
	Metrics     []*models.Metric         `json:"metrics"`
}

// ExportPack materializes a pack into a structured tree of span, claim and
// metric blocks with full citations. Members that have since been deleted
// are silently dropped from the export.
func (s *Service) ExportPack(ctx context.Context, principal models.Principal, packID string) (*PackExport, error) {
	pack, err := s.projectStorage.GetPack(ctx, principal.TenantID, packID)
	if err != nil {
		return nil, err
	}

	export := &PackExport{
		PackID:      pack.ID,
		Name:        pack.Name,
		Description: pack.Description,
		ExportedAt:  time.Now().UTC(),
		Spans:       []map[string]interface{}{},
		Claims:      []*models.Claim{},
		Metrics:     []*models.Metric{},
	}

	for _, spanID := range pack.SpanIDs {
		span, err := s.spanStorage.GetSpan(ctx, principal.TenantID, spanID)
		if err != nil {
			if err == interfaces.ErrNotFound {
				continue
			}
			return nil, err
		}
		block := map[string]interface{}{
			"span_id":      span.ID,
			"version_id":   span.DocumentVersionID,
			"span_type":    span.SpanType,
			"locator":      span.Locator,
			"span_hash":    span.SpanHash,
			"text_content": span.TextContent,
		}
		if version, err := s.versionStorage.GetVersion(ctx, principal.TenantID, span.DocumentVersionID); err == nil {
			block["document_id"] = version.DocumentID
			if doc, err := s.documentStorage.GetDocument(ctx, principal.TenantID, version.DocumentID); err == nil {
				block["document_filename"] = doc.OriginalFilename
			}
		}
		export.Spans = append(export.Spans, block)
	}

	for _, claimID := range pack.ClaimIDs {
		claim, err := s.factStorage.GetClaim(ctx, principal.TenantID, claimID)
		if err != nil {
			if err == interfaces.ErrNotFound {
				continue
			}
			return nil, err
		}
		export.Claims = append(export.Claims, claim)
	}

	for _, metricID := range pack.MetricIDs {
		metric, err := s.factStorage.GetMetric(ctx, principal.TenantID, metricID)
		if err != nil {
			if err == interfaces.ErrNotFound {
				continue
			}
			return nil, err
		}
		export.Metrics = append(export.Metrics, metric)
	}

	return export, nil
}

func (s *Service) projectScopeCheck(ctx context.Context, principal models.Principal, projectID string) error {
	if projectID == "" {
		return nil
	}
	_, err := s.projectStorage.GetProject(ctx, principal.TenantID, projectID)
	return err
}
