package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeProfile(t *testing.T, dir, customerID, csv string) {
	t.Helper()
	customerDir := filepath.Join(dir, "customers", customerID)
	if err := os.MkdirAll(customerDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(customerDir, "profile.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	dir := t.TempDir()
	writeProfile(t, dir, "ACME001",
		"customer_name,industry,segment,contract_value,renewal_date,account_manager,status,churn_risk_score,notes\n"+
			"Acme Corp,Manufacturing,Enterprise,250000,2026-11-01,Dana Reyes,active,0.85,Missed two QBRs this quarter\n")
	writeProfile(t, dir, "TECH002",
		"customer_name,industry,segment,contract_value,renewal_date,account_manager,status,churn_risk_score,notes\n"+
			"TechNova,Software,Mid-Market,90000,2027-02-15,Sam Ortiz,active,0.40,\n")
	writeProfile(t, dir, "FIN001",
		"customer_name,industry,segment,contract_value,renewal_date,account_manager,status,churn_risk_score,notes\n"+
			"FinEdge,Financial Services,Enterprise,410000,2026-09-30,Dana Reyes,at-risk,0.72,Escalated billing dispute\n")
	return NewLoader(Config{Dir: dir})
}

func TestProfileParsesAllFields(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)
	profile, err := loader.Profile("ACME001")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}

	if profile.Name != "Acme Corp" {
		t.Errorf("name = %q", profile.Name)
	}
	if profile.Industry != "Manufacturing" {
		t.Errorf("industry = %q", profile.Industry)
	}
	if profile.ContractValue != 250000 {
		t.Errorf("contract value = %v", profile.ContractValue)
	}
	if profile.ChurnRiskScore != 0.85 {
		t.Errorf("churn risk = %v", profile.ChurnRiskScore)
	}
	if profile.Notes == "" {
		t.Error("notes should not be empty")
	}
}

func TestProfileUnknownCustomer(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)
	if _, err := loader.Profile("GHOST999"); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("err = %v, want ErrCustomerNotFound", err)
	}
}

func TestGetRisk(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)
	risk, err := loader.GetRisk(context.Background(), "TECH002")
	if err != nil {
		t.Fatalf("GetRisk: %v", err)
	}
	if risk != 0.40 {
		t.Errorf("risk = %v, want 0.40", risk)
	}
}

func TestHighRiskSortedByScore(t *testing.T) {
	t.Parallel()

	loader := newTestLoader(t)
	profiles, err := loader.HighRisk(0.70)
	if err != nil {
		t.Fatalf("HighRisk: %v", err)
	}

	got := make([]string, 0, len(profiles))
	for _, p := range profiles {
		got = append(got, p.CustomerID)
	}
	want := []string{"ACME001", "FIN001"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("high risk ids = %v, want %v", got, want)
	}
}

func TestAvailableCustomersMissingDir(t *testing.T) {
	t.Parallel()

	loader := NewLoader(Config{Dir: filepath.Join(t.TempDir(), "nowhere")})
	ids, err := loader.AvailableCustomers()
	if err != nil {
		t.Fatalf("AvailableCustomers: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want none", ids)
	}
}

func TestCustomerContextRendersProfile(t *testing.T) {
	t.Parallel()

	builder := NewContextBuilder(newTestLoader(t))
	block, err := builder.CustomerContext("FIN001")
	if err != nil {
		t.Fatalf("CustomerContext: %v", err)
	}

	for _, want := range []string{"FIN001", "FinEdge", "Financial Services", "0.72", "billing dispute"} {
		if !strings.Contains(block, want) {
			t.Errorf("context missing %q:\n%s", want, block)
		}
	}
}

func TestCombinedContextSkipsUnknownIDs(t *testing.T) {
	t.Parallel()

	builder := NewContextBuilder(newTestLoader(t))
	block, err := builder.CombinedContext([]string{"ACME001", "GHOST999", "TECH002"})
	if err != nil {
		t.Fatalf("CombinedContext: %v", err)
	}
	if !strings.Contains(block, "Acme Corp") || !strings.Contains(block, "TechNova") {
		t.Errorf("context missing known customers:\n%s", block)
	}
	if strings.Contains(block, "GHOST999") {
		t.Errorf("context should not mention unknown id:\n%s", block)
	}
}

func TestExtractCustomerIDs(t *testing.T) {
	t.Parallel()

	known := []string{"ACME001", "TECH002", "FIN001"}

	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"single", "What should we do about ACME001?", []string{"ACME001"}},
		{"mention order", "Compare fin001 against ACME001 this quarter", []string{"FIN001", "ACME001"}},
		{"case insensitive", "is tech002 at risk?", []string{"TECH002"}},
		{"none", "Which accounts need attention?", nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractCustomerIDs(tc.query, known)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ExtractCustomerIDs(%q) = %v, want %v", tc.query, got, tc.want)
			}
		})
	}
}
