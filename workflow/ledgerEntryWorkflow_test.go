package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/models"
	"github.com/mmdatafocus/fluxo_backend/utils"
)

type fakeLedgerStore struct {
	entry *models.LedgerEntry
	err   error
	calls []string
}

func (s *fakeLedgerStore) result(call string) (*models.LedgerEntry, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return nil, s.err
	}
	return s.entry, nil
}

func (s *fakeLedgerStore) Create(ctx context.Context, input *models.NewLedgerEntry) (*models.LedgerEntry, error) {
	return s.result("create")
}

func (s *fakeLedgerStore) Update(ctx context.Context, id int, input *models.NewLedgerEntry) (*models.LedgerEntry, error) {
	return s.result("update")
}

func (s *fakeLedgerStore) MarkPaid(ctx context.Context, id int, paymentDate *time.Time) (*models.LedgerEntry, error) {
	return s.result("paid")
}

func (s *fakeLedgerStore) Reopen(ctx context.Context, id int) (*models.LedgerEntry, error) {
	return s.result("reopen")
}

func (s *fakeLedgerStore) Delete(ctx context.Context, id int) (*models.LedgerEntry, error) {
	return s.result("delete")
}

type triggerCall struct {
	companyId   int
	reason      string
	referenceId int
}

type recordingTrigger struct {
	calls []triggerCall
	err   error
}

func (r *recordingTrigger) Trigger(ctx context.Context, companyId int, reason string, referenceId int) error {
	r.calls = append(r.calls, triggerCall{companyId, reason, referenceId})
	return r.err
}

func TestLedgerEntryWorkflow_TriggersAfterEachMutation(t *testing.T) {
	store := &fakeLedgerStore{entry: &models.LedgerEntry{ID: 42, CompanyId: 7}}
	trigger := &recordingTrigger{}
	w := NewLedgerEntryWorkflow(store, trigger, testLogger())
	ctx := context.Background()

	steps := []struct {
		reason string
		run    func() (*models.LedgerEntry, error)
	}{
		{ReasonLedgerEntryCreated, func() (*models.LedgerEntry, error) { return w.Create(ctx, &models.NewLedgerEntry{}) }},
		{ReasonLedgerEntryUpdated, func() (*models.LedgerEntry, error) { return w.Update(ctx, 42, &models.NewLedgerEntry{}) }},
		{ReasonLedgerEntryPaid, func() (*models.LedgerEntry, error) { return w.MarkPaid(ctx, 42, nil) }},
		{ReasonLedgerEntryReopened, func() (*models.LedgerEntry, error) { return w.Reopen(ctx, 42) }},
		{ReasonLedgerEntryDeleted, func() (*models.LedgerEntry, error) { return w.Delete(ctx, 42) }},
	}
	for i, step := range steps {
		entry, err := step.run()
		if err != nil {
			t.Fatalf("%s: %v", step.reason, err)
		}
		if entry.ID != 42 {
			t.Fatalf("%s: unexpected entry %+v", step.reason, entry)
		}
		got := trigger.calls[i]
		if got != (triggerCall{7, step.reason, 42}) {
			t.Fatalf("%s: unexpected trigger %+v", step.reason, got)
		}
	}
}

func TestLedgerEntryWorkflow_MutationErrorSkipsTrigger(t *testing.T) {
	store := &fakeLedgerStore{err: utils.ErrorRecordNotFound}
	trigger := &recordingTrigger{}
	w := NewLedgerEntryWorkflow(store, trigger, testLogger())

	if _, err := w.Delete(context.Background(), 1); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(trigger.calls) != 0 {
		t.Fatalf("trigger must not run after a failed mutation")
	}
}

func TestLedgerEntryWorkflow_TriggerFailureKeepsEntry(t *testing.T) {
	store := &fakeLedgerStore{entry: &models.LedgerEntry{ID: 1, CompanyId: 2}}
	boom := errors.New("pubsub unavailable")
	w := NewLedgerEntryWorkflow(store, &recordingTrigger{err: boom}, testLogger())

	entry, err := w.Create(context.Background(), &models.NewLedgerEntry{})
	if entry == nil || entry.ID != 1 {
		t.Fatalf("expected saved entry to be returned, got %+v", entry)
	}
	if !errors.Is(err, ErrConsolidationFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrConsolidationFailed wrapping cause, got %v", err)
	}
}

func TestSyncTrigger_Consolidates(t *testing.T) {
	store := newMemoryCashFlowStore()
	store.inputs[3] = companyWithEntries(3, paidEntry(1, chartRent, bankMain, "200.00", day(2024, 5, 3)))
	trigger := NewConsolidationTrigger(config.CashFlowTriggerSync, newTestConsolidator(store))

	if err := trigger.Trigger(context.Background(), 3, ReasonLedgerEntryPaid, 1); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if realized, _ := store.summaries(3); len(realized) != 1 {
		t.Fatalf("expected consolidated row, got %d", len(realized))
	}
}

func TestPubSubTrigger_PublishesRequest(t *testing.T) {
	var got config.ConsolidationRequest
	trigger := &PubSubTrigger{Publish: func(ctx context.Context, msg config.ConsolidationRequest) (string, error) {
		got = msg
		return "msg-1", nil
	}}
	ctx := utils.SetCorrelationIdInContext(context.Background(), "corr-9")
	if err := trigger.Trigger(ctx, 5, ReasonLedgerEntryDeleted, 77); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if got.CompanyId != 5 || got.Reason != ReasonLedgerEntryDeleted || got.ReferenceId != 77 || got.CorrelationId != "corr-9" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.RequestedAt.IsZero() {
		t.Fatalf("expected requested_at to be set")
	}
	if _, ok := NewConsolidationTrigger(config.CashFlowTriggerPubSub, nil).(*PubSubTrigger); !ok {
		t.Fatalf("expected pubsub trigger for pubsub mode")
	}
}
