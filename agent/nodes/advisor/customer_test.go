package advisornode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	datasetx "github.com/tanpawarit/anti-churn-agent/agent/dataset"
)

type fakeRiskSource struct {
	score float64
	err   error
	ids   []string
}

func (f *fakeRiskSource) GetRisk(ctx context.Context, customerID string) (float64, error) {
	f.ids = append(f.ids, customerID)
	if f.err != nil {
		return 0, f.err
	}
	return f.score, nil
}

func newTestLoader(t *testing.T) *datasetx.Loader {
	t.Helper()

	dir := t.TempDir()
	customerDir := filepath.Join(dir, "customers", "ACME001")
	if err := os.MkdirAll(customerDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	csv := "customer_name,industry,segment,contract_value,renewal_date,account_manager,status,churn_risk_score,notes\n" +
		"Acme Corp,Manufacturing,Enterprise,250000,2026-11-01,Dana Reyes,active,0.85,\n"
	if err := os.WriteFile(filepath.Join(customerDir, "profile.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return datasetx.NewLoader(datasetx.Config{Dir: dir})
}

func newResolvedState(t *testing.T, query string) *GraphState {
	t.Helper()

	in, err := ValidateRequest(GraphInput{SessionID: "s1", Query: query}, time.Now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	return in
}

func TestResolveCustomerUsesRiskSource(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)
	builder := datasetx.NewContextBuilder(loader)
	risk := &fakeRiskSource{score: 0.99}

	in := newResolvedState(t, "what should we do about ACME001?")
	out, err := ResolveCustomer(context.Background(), in, loader, builder, risk)
	if err != nil {
		t.Fatalf("ResolveCustomer() error = %v", err)
	}

	if len(risk.ids) != 1 || risk.ids[0] != "ACME001" {
		t.Fatalf("risk source queried with %v, want [ACME001]", risk.ids)
	}
	if out.Risk == nil {
		t.Fatal("risk context should be set")
	}
	if out.Risk.ChurnRiskScore != 0.99 {
		t.Errorf("churn risk = %v, want the risk source's 0.99 not the profile's 0.85", out.Risk.ChurnRiskScore)
	}
	if out.Risk.Industry != "Manufacturing" {
		t.Errorf("industry = %q, want the profile's descriptive field", out.Risk.Industry)
	}
}

func TestResolveCustomerRiskFailureDegrades(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)
	builder := datasetx.NewContextBuilder(loader)
	risk := &fakeRiskSource{err: errors.New("risk service down")}

	in := newResolvedState(t, "status on ACME001?")
	out, err := ResolveCustomer(context.Background(), in, loader, builder, risk)
	if err != nil {
		t.Fatalf("ResolveCustomer() error = %v", err)
	}

	if out.Risk != nil {
		t.Errorf("risk context should be absent on lookup failure, got %+v", out.Risk)
	}
	if out.Context == "" {
		t.Error("customer context should still be attached")
	}
}

func TestResolveCustomerNilRiskSource(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)
	builder := datasetx.NewContextBuilder(loader)

	in := newResolvedState(t, "status on ACME001?")
	out, err := ResolveCustomer(context.Background(), in, loader, builder, nil)
	if err != nil {
		t.Fatalf("ResolveCustomer() error = %v", err)
	}

	if out.Risk != nil {
		t.Errorf("risk context should be absent without a risk source, got %+v", out.Risk)
	}
	if len(out.CustomerIDs) != 1 {
		t.Errorf("customer ids = %v, want the mentioned customer", out.CustomerIDs)
	}
}
