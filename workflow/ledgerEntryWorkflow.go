package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/models"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/sirupsen/logrus"
)

// ErrConsolidationFailed marks a committed ledger mutation whose summaries could not be refreshed.
var ErrConsolidationFailed = errors.New("ledger entry saved but cash flow consolidation failed")

const (
	ReasonLedgerEntryCreated  = "ledger_entry.created"
	ReasonLedgerEntryUpdated  = "ledger_entry.updated"
	ReasonLedgerEntryPaid     = "ledger_entry.paid"
	ReasonLedgerEntryReopened = "ledger_entry.reopened"
	ReasonLedgerEntryDeleted  = "ledger_entry.deleted"
)

// ConsolidationTrigger starts a recompute of one company after a ledger mutation commits.
type ConsolidationTrigger interface {
	Trigger(ctx context.Context, companyId int, reason string, referenceId int) error
}

// SyncTrigger consolidates inline.
type SyncTrigger struct {
	Consolidator *CashFlowConsolidator
}

func (t *SyncTrigger) Trigger(ctx context.Context, companyId int, reason string, referenceId int) error {
	return t.Consolidator.ConsolidateCompany(ctx, companyId)
}

// PubSubTrigger hands the recompute to the consolidation worker.
type PubSubTrigger struct {
	Publish func(ctx context.Context, msg config.ConsolidationRequest) (string, error)
}

func (t *PubSubTrigger) Trigger(ctx context.Context, companyId int, reason string, referenceId int) error {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	_, err := t.Publish(ctx, config.ConsolidationRequest{
		CompanyId:     companyId,
		Reason:        reason,
		ReferenceId:   referenceId,
		RequestedAt:   time.Now().UTC(),
		CorrelationId: correlationId,
	})
	return err
}

// NewConsolidationTrigger picks the trigger for the configured mode.
func NewConsolidationTrigger(mode config.CashFlowTriggerMode, consolidator *CashFlowConsolidator) ConsolidationTrigger {
	if mode == config.CashFlowTriggerPubSub {
		return &PubSubTrigger{Publish: config.PublishConsolidationRequest}
	}
	return &SyncTrigger{Consolidator: consolidator}
}

// LedgerEntryStore is the ledger CRUD the workflow drives.
type LedgerEntryStore interface {
	Create(ctx context.Context, input *models.NewLedgerEntry) (*models.LedgerEntry, error)
	Update(ctx context.Context, id int, input *models.NewLedgerEntry) (*models.LedgerEntry, error)
	MarkPaid(ctx context.Context, id int, paymentDate *time.Time) (*models.LedgerEntry, error)
	Reopen(ctx context.Context, id int) (*models.LedgerEntry, error)
	Delete(ctx context.Context, id int) (*models.LedgerEntry, error)
}

// GormLedgerEntryStore delegates to the models package.
type GormLedgerEntryStore struct{}

func (GormLedgerEntryStore) Create(ctx context.Context, input *models.NewLedgerEntry) (*models.LedgerEntry, error) {
	return models.CreateLedgerEntry(ctx, input)
}

func (GormLedgerEntryStore) Update(ctx context.Context, id int, input *models.NewLedgerEntry) (*models.LedgerEntry, error) {
	return models.UpdateLedgerEntry(ctx, id, input)
}

func (GormLedgerEntryStore) MarkPaid(ctx context.Context, id int, paymentDate *time.Time) (*models.LedgerEntry, error) {
	return models.MarkLedgerEntryPaid(ctx, id, paymentDate)
}

func (GormLedgerEntryStore) Reopen(ctx context.Context, id int) (*models.LedgerEntry, error) {
	return models.ReopenLedgerEntry(ctx, id)
}

func (GormLedgerEntryStore) Delete(ctx context.Context, id int) (*models.LedgerEntry, error) {
	return models.DeleteLedgerEntry(ctx, id)
}

// LedgerEntryWorkflow runs a ledger mutation and then triggers consolidation of its company.
// When only the trigger fails the saved entry is returned together with ErrConsolidationFailed.
type LedgerEntryWorkflow struct {
	store   LedgerEntryStore
	trigger ConsolidationTrigger
	logger  *logrus.Logger
}

func NewLedgerEntryWorkflow(store LedgerEntryStore, trigger ConsolidationTrigger, logger *logrus.Logger) *LedgerEntryWorkflow {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &LedgerEntryWorkflow{store: store, trigger: trigger, logger: logger}
}

func (w *LedgerEntryWorkflow) Create(ctx context.Context, input *models.NewLedgerEntry) (*models.LedgerEntry, error) {
	return w.afterCommit(ctx, ReasonLedgerEntryCreated)(w.store.Create(ctx, input))
}

func (w *LedgerEntryWorkflow) Update(ctx context.Context, id int, input *models.NewLedgerEntry) (*models.LedgerEntry, error) {
	return w.afterCommit(ctx, ReasonLedgerEntryUpdated)(w.store.Update(ctx, id, input))
}

func (w *LedgerEntryWorkflow) MarkPaid(ctx context.Context, id int, paymentDate *time.Time) (*models.LedgerEntry, error) {
	return w.afterCommit(ctx, ReasonLedgerEntryPaid)(w.store.MarkPaid(ctx, id, paymentDate))
}

func (w *LedgerEntryWorkflow) Reopen(ctx context.Context, id int) (*models.LedgerEntry, error) {
	return w.afterCommit(ctx, ReasonLedgerEntryReopened)(w.store.Reopen(ctx, id))
}

func (w *LedgerEntryWorkflow) Delete(ctx context.Context, id int) (*models.LedgerEntry, error) {
	return w.afterCommit(ctx, ReasonLedgerEntryDeleted)(w.store.Delete(ctx, id))
}

func (w *LedgerEntryWorkflow) afterCommit(ctx context.Context, reason string) func(*models.LedgerEntry, error) (*models.LedgerEntry, error) {
	return func(entry *models.LedgerEntry, err error) (*models.LedgerEntry, error) {
		if err != nil {
			return nil, err
		}
		if terr := w.trigger.Trigger(ctx, entry.CompanyId, reason, entry.ID); terr != nil {
			config.LogError(w.logger, "workflow", "LedgerEntryWorkflow", reason, entry.ID, terr)
			return entry, fmt.Errorf("%w: %w", ErrConsolidationFailed, terr)
		}
		return entry, nil
	}
}
