package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/models"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/mmdatafocus/fluxo_backend/workflow"
)

func main() {
	companyID := flag.Int("company-id", 0, "Optional: company id (default: every company with ledger entries)")
	policy := flag.String("unresolved-chart-policy", "", "Optional: fail|receivable (default from CASHFLOW_UNRESOLVED_CHART_POLICY)")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall timeout")
	flag.Parse()

	if *companyID < 0 {
		fmt.Fprintln(os.Stderr, "--company-id must be positive")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	opts := []workflow.ConsolidatorOption{}
	switch config.UnresolvedChartPolicy(*policy) {
	case "":
	case config.UnresolvedChartFail, config.UnresolvedChartReceivable:
		opts = append(opts, workflow.WithUnresolvedChartPolicy(config.UnresolvedChartPolicy(*policy)))
	default:
		fmt.Fprintf(os.Stderr, "invalid --unresolved-chart-policy %q\n", *policy)
		os.Exit(1)
	}
	consolidator := workflow.NewCashFlowConsolidator(models.NewCashFlowRepository(db), logger, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var err error
	if *companyID > 0 {
		// Redis is optional here; the MySQL advisory lock still serializes with the service.
		if os.Getenv("REDIS_ADDRESS") != "" {
			config.ConnectRedisWithRetry()
		}
		err = utils.CompanyLock(ctx, "cashflow", *companyID, *timeout, time.Minute, func(ctx context.Context) error {
			return consolidator.Consolidate(ctx, companyID)
		})
		if errors.Is(err, utils.ErrCompanyLockUnavailable) {
			err = consolidator.Consolidate(ctx, companyID)
		}
	} else {
		err = consolidator.Consolidate(ctx, nil)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "consolidation failed after %s:\n%v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}
	fmt.Printf("OK: cash flow consolidated in %s\n", time.Since(start).Round(time.Millisecond))
}
