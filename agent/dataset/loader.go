// Package dataset reads the CSV-backed customer records that ground every
// recommendation: one directory per customer with a profile.csv describing
// the account and its churn risk score.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var ErrCustomerNotFound = errors.New("customer not found")

type Config struct {
	Dir string `envconfig:"DIR" split_words:"true" default:"data"`
}

// Profile is one customer's account record.
type Profile struct {
	CustomerID     string
	Name           string
	Industry       string
	Segment        string
	ContractValue  float64
	RenewalDate    string
	AccountManager string
	Status         string
	ChurnRiskScore float64
	Notes          string
}

// Loader reads customer profiles from <dir>/customers/<ID>/profile.csv and
// caches them. Safe for concurrent use.
type Loader struct {
	customersDir string

	mu    sync.RWMutex
	cache map[string]*Profile
}

func NewLoader(cfg Config) *Loader {
	return &Loader{
		customersDir: filepath.Join(cfg.Dir, "customers"),
		cache:        make(map[string]*Profile),
	}
}

// AvailableCustomers lists the customer ids present in the dataset, sorted.
func (l *Loader) AvailableCustomers() ([]string, error) {
	entries, err := os.ReadDir(l.customersDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read customers dir: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Profile loads and caches the profile for a customer id.
func (l *Loader) Profile(customerID string) (*Profile, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: empty customer id", ErrCustomerNotFound)
	}

	l.mu.RLock()
	cached, ok := l.cache[customerID]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	path := filepath.Join(l.customersDir, customerID, "profile.csv")
	profile, err := readProfile(customerID, path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[customerID] = profile
	l.mu.Unlock()
	return profile, nil
}

// GetRisk implements the risk lookup capability over the CSV dataset.
func (l *Loader) GetRisk(ctx context.Context, customerID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	profile, err := l.Profile(customerID)
	if err != nil {
		return 0, err
	}
	return profile.ChurnRiskScore, nil
}

// HighRisk returns profiles whose churn risk score meets or exceeds the
// threshold, highest risk first.
func (l *Loader) HighRisk(threshold float64) ([]*Profile, error) {
	ids, err := l.AvailableCustomers()
	if err != nil {
		return nil, err
	}

	var out []*Profile
	for _, id := range ids {
		profile, err := l.Profile(id)
		if err != nil {
			if errors.Is(err, ErrCustomerNotFound) {
				continue
			}
			return nil, err
		}
		if profile.ChurnRiskScore >= threshold {
			out = append(out, profile)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ChurnRiskScore > out[j].ChurnRiskScore
	})
	return out, nil
}

func readProfile(customerID, path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
		}
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse profile csv for %s: %w", customerID, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("profile csv for %s has no data row", customerID)
	}

	fields := make(map[string]string, len(records[0]))
	for i, name := range records[0] {
		if i < len(records[1]) {
			fields[strings.TrimSpace(name)] = strings.TrimSpace(records[1][i])
		}
	}

	profile := &Profile{
		CustomerID:     customerID,
		Name:           fields["customer_name"],
		Industry:       fields["industry"],
		Segment:        fields["segment"],
		RenewalDate:    fields["renewal_date"],
		AccountManager: fields["account_manager"],
		Status:         fields["status"],
		Notes:          fields["notes"],
	}

	if raw := fields["churn_risk_score"]; raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid churn_risk_score for %s: %w", customerID, err)
		}
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("churn_risk_score for %s out of [0,1]: %v", customerID, score)
		}
		profile.ChurnRiskScore = score
	}
	if raw := fields["contract_value"]; raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid contract_value for %s: %w", customerID, err)
		}
		profile.ContractValue = value
	}

	return profile, nil
}
