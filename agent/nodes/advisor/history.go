package advisornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
	memoryx "github.com/tanpawarit/anti-churn-agent/agent/memory"
)

func LoadHistory(ctx context.Context, in *GraphState, store memoryx.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	turns, err := store.Turns(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return in, nil
	}

	summary, err := store.Summarize(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	in.History = summary
	return in, nil
}

// AppendTurn records the exchange after the answer is produced. A persistence
// failure does not discard the answer; the reply is marked unpersisted.
func AppendTurn(ctx context.Context, in *GraphState, store memoryx.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	err := store.Append(ctx, in.SessionID, memoryx.Turn{
		Query:       in.Query,
		Response:    in.Result.Text,
		CustomerIDs: in.CustomerIDs,
		CreatedAt:   in.Now,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("session_id", in.SessionID).
			Msg("failed to persist turn, returning reply anyway")
		in.Persisted = false
		return in, nil
	}
	in.Persisted = true
	return in, nil
}
