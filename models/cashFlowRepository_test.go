package models

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupCashFlowTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cashflow.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(prev)
		_ = sqlDB.Close()
	})
	return db
}

func setupCashFlowTestRedis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.SetRedisDB(client)
	t.Cleanup(func() {
		config.SetRedisDB(nil)
		_ = client.Close()
	})
}

func testDay(day int) time.Time {
	return time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)
}

func mustCreate(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func openLedgerEntry(id, companyId, chartId, bankId int, amount int64) *LedgerEntry {
	return &LedgerEntry{
		ID:             id,
		CompanyId:      companyId,
		EventDate:      testDay(1),
		DueDate:        testDay(10),
		Status:         LedgerStatusOpen,
		ChartAccountId: chartId,
		BankAccountId:  bankId,
		EntityId:       1,
		NominalAmount:  NewLenientDecimal(decimal.NewFromInt(amount)),
	}
}

func realizedRow(companyId, chartId, bankId int, paid int64) *RealizedSummary {
	amount := decimal.NewFromInt(paid)
	return &RealizedSummary{
		CompanyId:      companyId,
		Date:           testDay(5),
		ChartAccountId: chartId,
		BankAccountId:  bankId,
		PriorBalance:   decimal.NewFromInt(1000),
		AmountPaid:     amount,
		AmountReceived: decimal.Zero,
		CurrentBalance: decimal.NewFromInt(1000).Sub(amount),
	}
}

func forecastRow(companyId, chartId, bankId int, received int64) *ForecastSummary {
	amount := decimal.NewFromInt(received)
	return &ForecastSummary{
		CompanyId:        companyId,
		Date:             testDay(10),
		ChartAccountId:   chartId,
		BankAccountId:    bankId,
		PriorBalance:     decimal.NewFromInt(1000),
		ForecastPaid:     decimal.Zero,
		ForecastReceived: amount,
		ForecastBalance:  decimal.NewFromInt(1000).Add(amount),
	}
}

func TestCashFlowRepository_LoadsEntriesAscendingWithInactiveAccounts(t *testing.T) {
	db := setupCashFlowTestDB(t)

	inactive := false
	mustCreate(t, db, &ChartAccount{ID: 10, CompanyId: 1, Code: "2.1", Description: "Aluguel", Direction: ChartAccountDirectionPayable, IsActive: &inactive})
	mustCreate(t, db, &BankAccount{ID: 100, CompanyId: 1, Name: "Caixa", Bank: "001", Branch: "1", Number: "1", OpeningBalance: NewLenientDecimal(decimal.NewFromInt(1000)), IsActive: &inactive})
	mustCreate(t, db, &ChartAccount{ID: 20, CompanyId: 2, Code: "2.1", Description: "Aluguel", Direction: ChartAccountDirectionPayable, IsActive: utils.NewTrue()})
	mustCreate(t, db, &BankAccount{ID: 200, CompanyId: 2, Name: "Caixa", Bank: "001", Branch: "1", Number: "2", IsActive: utils.NewTrue()})
	for _, e := range []*LedgerEntry{
		openLedgerEntry(30, 1, 10, 100, 300),
		openLedgerEntry(10, 1, 10, 100, 100),
		openLedgerEntry(40, 2, 20, 200, 400),
		openLedgerEntry(20, 1, 10, 100, 200),
	} {
		mustCreate(t, db, e)
	}

	repo := NewCashFlowRepository(db)
	repo.advisoryLock = false

	ids, err := repo.ListLedgerCompanyIds(context.Background())
	if err != nil {
		t.Fatalf("ListLedgerCompanyIds: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected companies [1 2], got %v", ids)
	}

	err = repo.InCompanyScope(context.Background(), 1, func(ctx context.Context, unit CashFlowUnitOfWork) error {
		inputs, err := unit.LoadCashFlowInputs(ctx, 1)
		if err != nil {
			return err
		}
		if len(inputs.LedgerEntries) != 3 {
			t.Fatalf("expected 3 entries for company 1, got %d", len(inputs.LedgerEntries))
		}
		for i, expected := range []int{10, 20, 30} {
			if got := inputs.LedgerEntries[i].ID; got != expected {
				t.Fatalf("entry %d: expected id %d, got %d", i, expected, got)
			}
		}
		chart, ok := inputs.ChartAccounts[10]
		if !ok || utils.DereferencePtr(chart.IsActive, true) {
			t.Fatalf("expected inactive chart account 10 loaded, got %+v", chart)
		}
		bank, ok := inputs.BankAccounts[100]
		if !ok || utils.DereferencePtr(bank.IsActive, true) {
			t.Fatalf("expected inactive bank account 100 loaded, got %+v", bank)
		}
		if !bank.OpeningBalance.Equal(decimal.NewFromInt(1000)) {
			t.Fatalf("expected opening balance 1000, got %s", bank.OpeningBalance)
		}
		if len(inputs.ChartAccounts) != 1 || len(inputs.BankAccounts) != 1 {
			t.Fatalf("expected only company 1 accounts, got %d charts / %d banks", len(inputs.ChartAccounts), len(inputs.BankAccounts))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InCompanyScope: %v", err)
	}
}

func TestCashFlowRepository_ReplaceLeavesOtherCompaniesUntouched(t *testing.T) {
	db := setupCashFlowTestDB(t)

	mustCreate(t, db, realizedRow(1, 10, 100, 100))
	mustCreate(t, db, forecastRow(1, 11, 100, 50))
	mustCreate(t, db, realizedRow(2, 20, 200, 70))
	mustCreate(t, db, forecastRow(2, 21, 200, 80))

	repo := NewCashFlowRepository(db)
	repo.advisoryLock = false

	err := repo.InCompanyScope(context.Background(), 1, func(ctx context.Context, unit CashFlowUnitOfWork) error {
		return unit.ReplaceCashFlowSummaries(ctx, 1,
			[]*RealizedSummary{realizedRow(1, 10, 100, 999), realizedRow(1, 12, 100, 1)},
			nil,
		)
	})
	if err != nil {
		t.Fatalf("InCompanyScope: %v", err)
	}

	var realized []*RealizedSummary
	if err := db.Where("empresa_id = ?", 1).Order("id").Find(&realized).Error; err != nil {
		t.Fatalf("load realized: %v", err)
	}
	if len(realized) != 2 || !realized[0].AmountPaid.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("expected company 1 realized rows replaced, got %+v", realized)
	}
	var forecastCount int64
	db.Model(&ForecastSummary{}).Where("empresa_id = ?", 1).Count(&forecastCount)
	if forecastCount != 0 {
		t.Fatalf("expected company 1 forecast rows deleted, got %d", forecastCount)
	}

	var other []*RealizedSummary
	db.Where("empresa_id = ?", 2).Find(&other)
	if len(other) != 1 || !other[0].AmountPaid.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("company 2 realized rows changed: %+v", other)
	}
	var otherForecast []*ForecastSummary
	db.Where("empresa_id = ?", 2).Find(&otherForecast)
	if len(otherForecast) != 1 || !otherForecast[0].ForecastReceived.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("company 2 forecast rows changed: %+v", otherForecast)
	}
}

func TestCashFlowRepository_FailedReplaceRollsBack(t *testing.T) {
	db := setupCashFlowTestDB(t)
	mustCreate(t, db, realizedRow(1, 10, 100, 100))

	repo := NewCashFlowRepository(db)
	repo.advisoryLock = false

	err := repo.InCompanyScope(context.Background(), 1, func(ctx context.Context, unit CashFlowUnitOfWork) error {
		if err := unit.ReplaceCashFlowSummaries(ctx, 1, nil, nil); err != nil {
			return err
		}
		return errors.New("aggregation failed")
	})
	if err == nil {
		t.Fatalf("expected error from scope")
	}
	var count int64
	db.Model(&RealizedSummary{}).Where("empresa_id = ?", 1).Count(&count)
	if count != 1 {
		t.Fatalf("expected previous summaries kept after rollback, got %d rows", count)
	}

	err = repo.InCompanyScope(context.Background(), 1, func(ctx context.Context, unit CashFlowUnitOfWork) error {
		return unit.ReplaceCashFlowSummaries(ctx, 1, []*RealizedSummary{realizedRow(2, 10, 100, 5)}, nil)
	})
	if err == nil {
		t.Fatalf("expected a foreign company row to be rejected")
	}
	db.Model(&RealizedSummary{}).Where("empresa_id = ?", 1).Count(&count)
	if count != 1 {
		t.Fatalf("expected previous summaries kept, got %d rows", count)
	}
}

// A summary read that loads the old rows before a consolidation commits, then
// writes the cache after it, must not be served afterwards.
func TestGetRealizedSummaries_CacheNotStaleAfterConcurrentConsolidation(t *testing.T) {
	db := setupCashFlowTestDB(t)
	setupCashFlowTestRedis(t)
	mustCreate(t, db, realizedRow(1, 10, 100, 100))

	loaded := make(chan struct{})
	release := make(chan struct{})
	var pauseOnce sync.Once
	err := db.Callback().Query().After("gorm:query").Register("test:pause_summary_read", func(tx *gorm.DB) {
		if tx.Statement.Table != "fluxo_caixa_realizado" {
			return
		}
		pauseOnce.Do(func() {
			close(loaded)
			<-release
		})
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	ctx := utils.SetCompanyIdInContext(context.Background(), 1)
	type readResult struct {
		rows []*RealizedSummary
		err  error
	}
	inFlight := make(chan readResult, 1)
	go func() {
		rows, err := GetRealizedSummaries(ctx, nil)
		inFlight <- readResult{rows, err}
	}()
	<-loaded

	repo := NewCashFlowRepository(db)
	repo.advisoryLock = false
	err = repo.InCompanyScope(context.Background(), 1, func(ctx context.Context, unit CashFlowUnitOfWork) error {
		return unit.ReplaceCashFlowSummaries(ctx, 1, []*RealizedSummary{realizedRow(1, 10, 100, 999)}, nil)
	})
	close(release)
	if err != nil {
		t.Fatalf("InCompanyScope: %v", err)
	}
	first := <-inFlight
	if first.err != nil {
		t.Fatalf("in-flight GetRealizedSummaries: %v", first.err)
	}

	rows, err := GetRealizedSummaries(ctx, nil)
	if err != nil {
		t.Fatalf("GetRealizedSummaries: %v", err)
	}
	if len(rows) != 1 || !rows[0].AmountPaid.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("expected consolidated amount_paid 999 after commit, got %+v", rows)
	}

	// the fresh result is cached under the new version
	cached, err := GetRealizedSummaries(ctx, nil)
	if err != nil || len(cached) != 1 || !cached[0].AmountPaid.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("expected cached amount_paid 999, got %+v err=%v", cached, err)
	}
}

func TestGetRealizedSummaries_Filtered(t *testing.T) {
	db := setupCashFlowTestDB(t)
	mustCreate(t, db, realizedRow(1, 10, 100, 100))
	mustCreate(t, db, realizedRow(1, 11, 101, 40))
	mustCreate(t, db, realizedRow(2, 10, 100, 70))

	ctx := utils.SetCompanyIdInContext(context.Background(), 1)
	chart := 11
	rows, err := GetRealizedSummaries(ctx, &CashFlowSummaryFilter{ChartAccountId: &chart})
	if err != nil {
		t.Fatalf("GetRealizedSummaries: %v", err)
	}
	if len(rows) != 1 || rows[0].BankAccountId != 101 {
		t.Fatalf("expected the chart 11 row only, got %+v", rows)
	}
	all, err := GetRealizedSummaries(ctx, nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 company 1 rows, got %d err=%v", len(all), err)
	}
}

func TestGetCashFlowSummaries_Errors(t *testing.T) {
	if _, err := GetRealizedSummaries(context.Background(), nil); !errors.Is(err, utils.ErrorCompanyRequired) {
		t.Fatalf("expected ErrorCompanyRequired, got %v", err)
	}

	prev := config.GetDB()
	config.SetDB(nil)
	t.Cleanup(func() { config.SetDB(prev) })
	config.SetRedisDB(nil)

	ctx := utils.SetCompanyIdInContext(context.Background(), 1)
	if _, err := GetForecastSummaries(ctx, nil); !errors.Is(err, errDatabaseNotConnected) {
		t.Fatalf("expected errDatabaseNotConnected, got %v", err)
	}
}
