package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/models"
)

func main() {
	companyID := flag.Int("company-id", 0, "Optional: company id (default: every company)")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	ctx := context.Background()

	ids := []int{*companyID}
	if *companyID <= 0 {
		var err error
		ids, err = models.ListCompanyIds(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list companies: %v\n", err)
			os.Exit(1)
		}
	}

	failed := 0
	for _, id := range ids {
		created, err := models.SeedDefaultChartAccounts(ctx, id)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "company %d: %v\n", id, err)
			continue
		}
		fmt.Printf("company %d: %d chart accounts created\n", id, created)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
