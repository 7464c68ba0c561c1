package models

import "testing"

func TestDefaultChartOfAccounts_Consistent(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range DefaultChartOfAccounts {
		if seen[def.Code] {
			t.Fatalf("duplicate code %s", def.Code)
		}
		seen[def.Code] = true
		if !def.Direction.IsValid() {
			t.Fatalf("code %s has invalid direction %q", def.Code, def.Direction)
		}
		// Receipts live under 1, payments under 2.
		want := ChartAccountDirectionReceivable
		if def.Code[0] == '2' {
			want = ChartAccountDirectionPayable
		}
		if def.Direction != want {
			t.Fatalf("code %s expected direction %s, got %s", def.Code, want, def.Direction)
		}
	}
	if len(DefaultChartOfAccounts) != 37 {
		t.Fatalf("expected 37 default accounts, got %d", len(DefaultChartOfAccounts))
	}
}

func TestMissingDefaultChartAccounts_SkipsExisting(t *testing.T) {
	accounts := missingDefaultChartAccounts(5, map[string]bool{"1": true, "2.2.1": true})
	if len(accounts) != len(DefaultChartOfAccounts)-2 {
		t.Fatalf("expected %d accounts, got %d", len(DefaultChartOfAccounts)-2, len(accounts))
	}
	for _, a := range accounts {
		if a.Code == "1" || a.Code == "2.2.1" {
			t.Fatalf("existing code %s must be skipped", a.Code)
		}
		if a.CompanyId != 5 {
			t.Fatalf("expected company 5, got %d", a.CompanyId)
		}
		if a.IsActive == nil || !*a.IsActive {
			t.Fatalf("seeded accounts must be active")
		}
	}
	if got := missingDefaultChartAccounts(5, map[string]bool{}); got[2].AnalyticLevel == got[3].AnalyticLevel {
		t.Fatalf("analytic levels must not share a pointer")
	}
}
