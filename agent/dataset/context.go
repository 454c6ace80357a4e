package dataset

import (
	"errors"
	"fmt"
	"strings"
)

/* ---------------------------------- context ---------------------------------- */

// ContextBuilder renders customer profiles into the plain-text context block
// handed to the generation model.
type ContextBuilder struct {
	loader *Loader
}

func NewContextBuilder(loader *Loader) *ContextBuilder {
	return &ContextBuilder{loader: loader}
}

// CustomerContext renders a single profile as a context block.
func (b *ContextBuilder) CustomerContext(customerID string) (string, error) {
	profile, err := b.loader.Profile(customerID)
	if err != nil {
		return "", err
	}
	return renderProfile(profile), nil
}

// CombinedContext renders the profiles of every listed customer, in order,
// skipping ids the dataset does not know.
func (b *ContextBuilder) CombinedContext(customerIDs []string) (string, error) {
	var blocks []string
	for _, id := range customerIDs {
		block, err := b.CustomerContext(id)
		if err != nil {
			if errors.Is(err, ErrCustomerNotFound) {
				continue
			}
			return "", err
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n"), nil
}

func renderProfile(p *Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Customer %s (%s)\n", p.CustomerID, p.Name)
	fmt.Fprintf(&sb, "Industry: %s | Segment: %s | Status: %s\n", p.Industry, p.Segment, p.Status)
	fmt.Fprintf(&sb, "Contract value: $%.0f | Renewal: %s | Account manager: %s\n", p.ContractValue, p.RenewalDate, p.AccountManager)
	fmt.Fprintf(&sb, "Churn risk score: %.2f", p.ChurnRiskScore)
	if p.Notes != "" {
		fmt.Fprintf(&sb, "\nNotes: %s", p.Notes)
	}
	return sb.String()
}

/* -------------------------------- id extraction ------------------------------- */

// ExtractCustomerIDs returns the known customer ids mentioned in the query,
// in order of first mention. Matching is case-insensitive.
func ExtractCustomerIDs(query string, known []string) []string {
	upper := strings.ToUpper(query)

	type hit struct {
		id  string
		pos int
	}
	var hits []hit
	for _, id := range known {
		pos := strings.Index(upper, strings.ToUpper(id))
		if pos >= 0 {
			hits = append(hits, hit{id: id, pos: pos})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var out []string
	for _, h := range hits {
		out = append(out, h.id)
	}
	return out
}
