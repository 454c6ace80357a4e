// Package advisor is the service layer of the retention agent: it wires
// session memory, the customer dataset, and the recommendation loop into a
// single query-handling pipeline.
package advisor

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
	datasetx "github.com/tanpawarit/anti-churn-agent/agent/dataset"
	loopx "github.com/tanpawarit/anti-churn-agent/agent/loop"
	memoryx "github.com/tanpawarit/anti-churn-agent/agent/memory"
	nodex "github.com/tanpawarit/anti-churn-agent/agent/nodes/advisor"
)

var (
	ErrInvalidSession = contractx.ErrInvalidSession
	ErrInvalidQuery   = contractx.ErrInvalidQuery
)

// Reply is the advisor's answer to one query.
type Reply = nodex.GraphOutput

type Advisor struct {
	engine  *loopx.Engine
	store   memoryx.Store
	loader  *datasetx.Loader
	builder *datasetx.ContextBuilder
	risk    contractx.RiskSource

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

// New builds an Advisor. The dataset loader is optional; without one,
// queries run without customer context or risk gating.
func New(engine *loopx.Engine, store memoryx.Store, loader *datasetx.Loader) (*Advisor, error) {
	if engine == nil {
		return nil, errors.New("loop engine is required")
	}
	if store == nil {
		return nil, errors.New("memory store is required")
	}

	a := &Advisor{
		engine: engine,
		store:  store,
		loader: loader,
		now:    time.Now,
	}
	if loader != nil {
		a.builder = datasetx.NewContextBuilder(loader)
		a.risk = loader
	}

	graphRunner, err := a.compileHandleQueryGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.graphRunner = graphRunner

	return a, nil
}

// HandleQuery answers one retention question in the given session.
func (a *Advisor) HandleQuery(ctx context.Context, sessionID string, query string) (Reply, error) {
	out, err := a.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Query:     query,
	})
	if err != nil {
		return Reply{}, err
	}
	return out, nil
}

// Summary returns the session's conversation digest.
func (a *Advisor) Summary(ctx context.Context, sessionID string) (string, error) {
	return a.store.Summarize(ctx, sessionID)
}

// ClearSession drops the session's history. Clearing an unknown session is
// not an error.
func (a *Advisor) ClearSession(ctx context.Context, sessionID string) error {
	return a.store.Clear(ctx, sessionID)
}

// HighRiskCustomers lists dataset profiles at or above the risk threshold,
// highest risk first. Without a dataset it returns an empty list.
func (a *Advisor) HighRiskCustomers(threshold float64) ([]*datasetx.Profile, error) {
	if a.loader == nil {
		return nil, nil
	}
	return a.loader.HighRisk(threshold)
}
