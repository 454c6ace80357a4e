// Package advisornode holds the pipeline steps behind the advisor service:
// request validation, history loading, customer resolution, the
// recommendation loop, and turn persistence.
package advisornode

import (
	"strings"
	"time"

	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
	loopx "github.com/tanpawarit/anti-churn-agent/agent/loop"
)

type GraphInput struct {
	SessionID string
	Query     string
}

// GraphOutput is the advisor's reply. Feedback is populated only when the
// retry budget ran out and the final draft still failed evaluation.
type GraphOutput struct {
	SessionID string
	Reply     string
	Feedback  string
	Score     int
	Attempts  int
	Augmented bool
	Persisted bool
}

// GraphState flows through the advisor pipeline, one node at a time.
type GraphState struct {
	SessionID string
	Query     string
	Now       time.Time

	History     string
	CustomerIDs []string
	Context     string
	Risk        *contractx.CustomerRiskContext

	Result    loopx.Result
	Persisted bool
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, contractx.ErrInvalidSession
	}

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, contractx.ErrInvalidQuery
	}

	return &GraphState{
		SessionID: sessionID,
		Query:     query,
		Now:       nowFn().UTC(),
	}, nil
}
