package config

import (
	"os"
	"strings"
	"time"
)

// UnresolvedChartPolicy decides what consolidation does with a ledger entry whose chart account
// cannot be resolved (missing row or invalid direction).
type UnresolvedChartPolicy string

const (
	// UnresolvedChartFail aborts that company's run; its previous summaries stay in place.
	UnresolvedChartFail UnresolvedChartPolicy = "fail"
	// UnresolvedChartReceivable books the entry as a receipt and logs a warning.
	UnresolvedChartReceivable UnresolvedChartPolicy = "receivable"
)

// CashFlowUnresolvedChartPolicy reads CASHFLOW_UNRESOLVED_CHART_POLICY (fail|receivable, default fail).
func CashFlowUnresolvedChartPolicy() UnresolvedChartPolicy {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CASHFLOW_UNRESOLVED_CHART_POLICY")))
	if v == string(UnresolvedChartReceivable) {
		return UnresolvedChartReceivable
	}
	return UnresolvedChartFail
}

// CashFlowTriggerMode says how ledger mutations request a recompute.
type CashFlowTriggerMode string

const (
	CashFlowTriggerSync   CashFlowTriggerMode = "sync"
	CashFlowTriggerPubSub CashFlowTriggerMode = "pubsub"
)

// CashFlowTrigger reads CASHFLOW_TRIGGER_MODE (sync|pubsub, default sync).
func CashFlowTrigger() CashFlowTriggerMode {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CASHFLOW_TRIGGER_MODE")))
	if v == string(CashFlowTriggerPubSub) {
		return CashFlowTriggerPubSub
	}
	return CashFlowTriggerSync
}

// CashFlowAdvisoryLockEnabled toggles the MySQL GET_LOCK taken around each company's recompute.
//
// Set via env:
// - CASHFLOW_ADVISORY_LOCK=false
func CashFlowAdvisoryLockEnabled() bool {
	return envBool("CASHFLOW_ADVISORY_LOCK", true)
}

// CashFlowSummaryCacheTTL reads CASHFLOW_SUMMARY_CACHE_TTL_SECONDS (default 300s).
func CashFlowSummaryCacheTTL() time.Duration {
	return time.Duration(intFromEnv("CASHFLOW_SUMMARY_CACHE_TTL_SECONDS", 300)) * time.Second
}

func envBool(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
