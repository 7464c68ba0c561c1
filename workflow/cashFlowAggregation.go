package workflow

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/models"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrUnresolvedChartAccount = errors.New("unresolved chart account direction")

// cashFlowKey groups entries per (chart account, bank account).
type cashFlowKey struct {
	chartAccountId int
	bankAccountId  int
}

type cashFlowGroup struct {
	key      cashFlowKey
	debit    decimal.Decimal // payable side
	credit   decimal.Decimal // receivable side
	lastDate time.Time
}

// cashFlowBucket keeps groups in first-seen order.
type cashFlowBucket struct {
	order  []*cashFlowGroup
	groups map[cashFlowKey]*cashFlowGroup
}

func newCashFlowBucket() *cashFlowBucket {
	return &cashFlowBucket{groups: make(map[cashFlowKey]*cashFlowGroup)}
}

func (b *cashFlowBucket) add(key cashFlowKey, direction models.ChartAccountDirection, amount decimal.Decimal, date time.Time) {
	g, ok := b.groups[key]
	if !ok {
		g = &cashFlowGroup{key: key, debit: decimal.Zero, credit: decimal.Zero}
		b.groups[key] = g
		b.order = append(b.order, g)
	}
	if direction == models.ChartAccountDirectionPayable {
		g.debit = g.debit.Add(amount)
	} else {
		g.credit = g.credit.Add(amount)
	}
	// last processed entry wins, not the latest date
	g.lastDate = utils.DateOnly(date)
}

// resolveDirection returns the direction of the entry's chart account.
// Under the receivable policy an unresolved reference counts as a receipt.
func resolveDirection(logger *logrus.Logger, inputs *models.CashFlowInputs, entry *models.LedgerEntry, policy config.UnresolvedChartPolicy) (models.ChartAccountDirection, error) {
	chart, ok := inputs.ChartAccounts[entry.ChartAccountId]
	if ok && chart.Direction.IsValid() {
		return chart.Direction, nil
	}
	reason := "chart account not found"
	if ok {
		reason = fmt.Sprintf("invalid direction %q", chart.Direction)
	}
	if policy != config.UnresolvedChartReceivable {
		return "", fmt.Errorf("%w: ledger entry %d, chart account %d: %s", ErrUnresolvedChartAccount, entry.ID, entry.ChartAccountId, reason)
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"company_id":       inputs.CompanyId,
			"ledger_entry_id":  entry.ID,
			"chart_account_id": entry.ChartAccountId,
			"reason":           reason,
		}).Warn("cash flow: unresolved chart account treated as receivable")
	}
	return models.ChartAccountDirectionReceivable, nil
}

func priorBalance(inputs *models.CashFlowInputs, bankAccountId int) decimal.Decimal {
	bank, ok := inputs.BankAccounts[bankAccountId]
	if !ok {
		return decimal.Zero
	}
	return bank.OpeningBalance.Decimal
}

// AggregateCashFlow builds the realized and forecast rows of one company.
// Entries are processed by ascending id. Paid entries count their paid amount on the payment date
// (event date when missing); every other status counts the nominal amount on the due date
// (event date when missing). Each row's date is the date of the last entry processed in its group.
func AggregateCashFlow(logger *logrus.Logger, inputs *models.CashFlowInputs, policy config.UnresolvedChartPolicy) ([]*models.RealizedSummary, []*models.ForecastSummary, error) {
	entries := make([]*models.LedgerEntry, 0, len(inputs.LedgerEntries))
	for _, e := range inputs.LedgerEntries {
		if e != nil {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	realized := newCashFlowBucket()
	forecast := newCashFlowBucket()
	for _, entry := range entries {
		direction, err := resolveDirection(logger, inputs, entry, policy)
		if err != nil {
			return nil, nil, err
		}
		key := cashFlowKey{chartAccountId: entry.ChartAccountId, bankAccountId: entry.BankAccountId}
		if entry.Status.IsPaid() {
			date := entry.EventDate
			if entry.PaymentDate != nil && !entry.PaymentDate.IsZero() {
				date = *entry.PaymentDate
			}
			realized.add(key, direction, entry.PaidAmount.Decimal, date)
			continue
		}
		date := entry.EventDate
		if !entry.DueDate.IsZero() {
			date = entry.DueDate
		}
		forecast.add(key, direction, entry.NominalAmount.Decimal, date)
	}

	realizedRows := make([]*models.RealizedSummary, 0, len(realized.order))
	for _, g := range realized.order {
		prior := priorBalance(inputs, g.key.bankAccountId)
		realizedRows = append(realizedRows, &models.RealizedSummary{
			CompanyId:      inputs.CompanyId,
			Date:           g.lastDate,
			ChartAccountId: g.key.chartAccountId,
			BankAccountId:  g.key.bankAccountId,
			PriorBalance:   prior,
			AmountPaid:     g.debit,
			AmountReceived: g.credit,
			CurrentBalance: prior.Add(g.credit).Sub(g.debit),
		})
	}
	forecastRows := make([]*models.ForecastSummary, 0, len(forecast.order))
	for _, g := range forecast.order {
		prior := priorBalance(inputs, g.key.bankAccountId)
		forecastRows = append(forecastRows, &models.ForecastSummary{
			CompanyId:        inputs.CompanyId,
			Date:             g.lastDate,
			ChartAccountId:   g.key.chartAccountId,
			BankAccountId:    g.key.bankAccountId,
			PriorBalance:     prior,
			ForecastPaid:     g.debit,
			ForecastReceived: g.credit,
			ForecastBalance:  prior.Add(g.credit).Sub(g.debit),
		})
	}
	return realizedRows, forecastRows, nil
}
