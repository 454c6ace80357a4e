package advisornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
	datasetx "github.com/tanpawarit/anti-churn-agent/agent/dataset"
	loopx "github.com/tanpawarit/anti-churn-agent/agent/loop"
)

// ResolveCustomer extracts mentioned customer ids from the query and attaches
// their profile context plus the risk signal for the first mentioned customer.
// The churn risk score comes from the risk source; the profile only supplies
// descriptive fields. Dataset failures degrade to an uncontextualized query
// instead of failing the request.
func ResolveCustomer(ctx context.Context, in *GraphState, loader *datasetx.Loader, builder *datasetx.ContextBuilder, risk contractx.RiskSource) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if loader == nil || builder == nil {
		return in, nil
	}

	known, err := loader.AvailableCustomers()
	if err != nil {
		log.Warn().Err(err).Msg("customer dataset unavailable, continuing without context")
		return in, nil
	}

	ids := datasetx.ExtractCustomerIDs(in.Query, known)
	if len(ids) == 0 {
		return in, nil
	}
	in.CustomerIDs = ids

	block, err := builder.CombinedContext(ids)
	if err != nil {
		log.Warn().Err(err).Strs("customer_ids", ids).Msg("failed to build customer context")
	} else {
		in.Context = block
	}

	if risk == nil {
		return in, nil
	}
	score, err := risk.GetRisk(ctx, ids[0])
	if err != nil {
		log.Warn().Err(err).Str("customer_id", ids[0]).Msg("failed to resolve customer risk")
		return in, nil
	}
	riskCtx := &contractx.CustomerRiskContext{
		CustomerID:     ids[0],
		ChurnRiskScore: score,
	}
	if profile, err := loader.Profile(ids[0]); err == nil {
		riskCtx.Industry = profile.Industry
	}
	in.Risk = riskCtx
	return in, nil
}

// RunLoop hands the contextualized query to the recommendation engine.
func RunLoop(ctx context.Context, in *GraphState, engine *loopx.Engine) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	result, err := engine.Produce(ctx, loopx.Request{
		Query:   in.Query,
		Context: buildLoopContext(in),
		Risk:    in.Risk,
	})
	if err != nil {
		return nil, err
	}
	in.Result = result
	return in, nil
}

func buildLoopContext(in *GraphState) string {
	var blocks []string
	if in.Context != "" {
		blocks = append(blocks, in.Context)
	}
	if in.History != "" {
		blocks = append(blocks, in.History)
	}
	return strings.Join(blocks, "\n\n")
}

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Result.Text)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: loop returned empty reply", contractx.ErrValidation)
	}

	out := GraphOutput{
		SessionID: in.SessionID,
		Reply:     reply,
		Score:     in.Result.Evaluation.Score,
		Attempts:  in.Result.Attempts,
		Augmented: in.Result.Augmented,
		Persisted: in.Persisted,
	}
	if !in.Result.Evaluation.Passed() {
		out.Feedback = in.Result.Evaluation.Feedback
	}
	return out, nil
}
