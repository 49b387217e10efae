package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indicium/internal/common"
	"github.com/ternarybob/indicium/internal/interfaces"
)

// Compile-time interface assertion
var _ interfaces.StorageManager = (*Manager)(nil)

// Manager implements interfaces.StorageManager over a single Badger database
type Manager struct {
	db     *BadgerDB
	logger arbor.ILogger

	documents  *DocumentStorage
	versions   *VersionStorage
	spans      *SpanStorage
	embeddings *EmbeddingStorage
	facts      *FactStorage
	runs       *RunStorage
	quality    *QualityStorage
	projects   *ProjectStorage
	jobs       *JobStorage
	deletions  *DeletionStorage
	audit      *AuditStorage
	tenants    *TenantStorage
	queue      *QueueStorage
}

// NewManager opens the database and wires all storage areas
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	m := &Manager{db: db, logger: logger}
	m.documents = NewDocumentStorage(db, logger)
	m.versions = NewVersionStorage(db, logger)
	m.spans = NewSpanStorage(db, logger)
	m.embeddings = NewEmbeddingStorage(db, logger)
	m.facts = NewFactStorage(db, logger)
	m.runs = NewRunStorage(db, logger)
	m.quality = NewQualityStorage(db, logger)
	m.projects = NewProjectStorage(db, logger)
	m.jobs = NewJobStorage(db, logger)
	m.deletions = NewDeletionStorage(db, logger)
	m.audit = NewAuditStorage(db, logger)
	m.tenants = NewTenantStorage(db, logger)
	m.queue = NewQueueStorage(db, logger)
	return m, nil
}

func (m *Manager) DocumentStorage() interfaces.DocumentStorage   { return m.documents }
func (m *Manager) VersionStorage() interfaces.VersionStorage     { return m.versions }
func (m *Manager) SpanStorage() interfaces.SpanStorage           { return m.spans }
func (m *Manager) EmbeddingStorage() interfaces.EmbeddingStorage { return m.embeddings }
func (m *Manager) FactStorage() interfaces.FactStorage           { return m.facts }
func (m *Manager) RunStorage() interfaces.RunStorage             { return m.runs }
func (m *Manager) QualityStorage() interfaces.QualityStorage     { return m.quality }
func (m *Manager) ProjectStorage() interfaces.ProjectStorage     { return m.projects }
func (m *Manager) JobStorage() interfaces.JobStorage             { return m.jobs }
func (m *Manager) DeletionStorage() interfaces.DeletionStorage   { return m.deletions }
func (m *Manager) AuditStorage() interfaces.AuditStorage         { return m.audit }
func (m *Manager) TenantStorage() interfaces.TenantStorage       { return m.tenants }

// QueueStorage returns the message queue backing store (not part of the
// StorageManager interface; the queue package consumes it directly)
func (m *Manager) QueueStorage() *QueueStorage { return m.queue }

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}
