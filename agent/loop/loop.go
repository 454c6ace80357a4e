package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
)

const (
	DefaultMaxAttempts   = 3
	DefaultRiskThreshold = 0.70
	DefaultCallTimeout   = 45 * time.Second
)

// Config carries the loop's product knobs. The defaults mirror the documented
// retry budget (one initial attempt plus two retries) and the 70% risk gate.
type Config struct {
	MaxAttempts   int           `envconfig:"MAX_ATTEMPTS" split_words:"true" default:"3"`
	RiskThreshold float64       `envconfig:"RISK_THRESHOLD" split_words:"true" default:"0.70"`
	CallTimeout   time.Duration `envconfig:"CALL_TIMEOUT" split_words:"true" default:"45s"`
}

func (c Config) normalized() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RiskThreshold <= 0 {
		c.RiskThreshold = DefaultRiskThreshold
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}

// Request is one recommendation invocation. Context is the session digest plus
// any customer profile context; Risk gates the research augmentation.
type Request struct {
	Query   string
	Context string
	Risk    *contractx.CustomerRiskContext
}

// Attempt records one generate-then-evaluate cycle. Attempts live only for
// the duration of a single Produce call.
type Attempt struct {
	Number     int
	Draft      string
	Evaluation contractx.Evaluation
	Augmented  bool
}

// Result is the loop's final answer. Evaluation may carry a FAIL verdict when
// the retry budget ran out; the loop never discards a best-effort draft.
type Result struct {
	Text       string
	Evaluation contractx.Evaluation
	Attempts   int
	Augmented  bool
}

// Option customizes an Engine.
type Option func(*Engine)

func WithResearcher(r contractx.Researcher) Option {
	return func(e *Engine) {
		e.research = r
	}
}

func WithObserver(obs contractx.LoopObserver) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

// Engine coordinates the bounded generate/evaluate retry loop. It is a pure
// orchestration function over its inputs and capabilities: it never writes to
// session memory.
type Engine struct {
	gen      contractx.Generator
	eval     contractx.Evaluator
	research contractx.Researcher
	observer contractx.LoopObserver
	cfg      Config
}

func New(gen contractx.Generator, eval contractx.Evaluator, cfg Config, opts ...Option) (*Engine, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if eval == nil {
		return nil, errors.New("evaluator is required")
	}

	e := &Engine{
		gen:  gen,
		eval: eval,
		cfg:  cfg.normalized(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Produce runs up to MaxAttempts generate-then-evaluate cycles, feeding each
// failing evaluation's feedback into the next generation input. A PASS verdict
// returns immediately; on exhaustion the last evaluated draft is returned
// together with its failing evaluation.
func (e *Engine) Produce(ctx context.Context, req Request) (Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Result{}, contractx.ErrInvalidQuery
	}

	var (
		research      string
		researchAsked bool
		feedback      []string
		last          *Attempt
		lastCallErr   error
	)

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		e.notifyStarted(attempt)

		// Research is requested at most once per Produce call and reused
		// across retries, even when the fetch itself failed.
		if !researchAsked && e.shouldResearch(req.Risk) {
			researchAsked = true
			research = e.fetchResearch(ctx, req.Risk)
		}

		draft, err := e.callGenerator(ctx, contractx.GenerationRequest{
			Query:    buildGenerationInput(query, feedback),
			Context:  req.Context,
			Research: research,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			lastCallErr = fmt.Errorf("%w: attempt=%d: %v", contractx.ErrGenerationUnavailable, attempt, err)
			e.notifyFailed(attempt, lastCallErr)
			continue
		}

		eval, err := e.callEvaluator(ctx, query, draft)
		if err != nil {
			if errors.Is(err, contractx.ErrMalformedEvaluation) {
				// Contract violation, not a transient condition. Surface it
				// immediately instead of treating the draft as PASS or FAIL.
				return Result{}, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			lastCallErr = fmt.Errorf("%w: attempt=%d: %v", contractx.ErrEvaluationUnavailable, attempt, err)
			e.notifyFailed(attempt, lastCallErr)
			continue
		}

		e.notifyEvaluated(attempt, eval)
		last = &Attempt{
			Number:     attempt,
			Draft:      draft,
			Evaluation: eval,
			Augmented:  research != "",
		}

		if eval.Passed() {
			return Result{
				Text:       draft,
				Evaluation: eval,
				Attempts:   attempt,
				Augmented:  research != "",
			}, nil
		}

		if fb := strings.TrimSpace(eval.Feedback); fb != "" {
			feedback = append(feedback, fb)
		}
	}

	if last == nil {
		if lastCallErr != nil {
			return Result{}, lastCallErr
		}
		return Result{}, contractx.ErrGenerationUnavailable
	}

	return Result{
		Text:       last.Draft,
		Evaluation: last.Evaluation,
		Attempts:   e.cfg.MaxAttempts,
		Augmented:  last.Augmented,
	}, nil
}

func (e *Engine) shouldResearch(risk *contractx.CustomerRiskContext) bool {
	if e.research == nil || risk == nil {
		return false
	}
	// Strict inequality: a score of exactly RiskThreshold does not trigger.
	return risk.ChurnRiskScore > e.cfg.RiskThreshold
}

func (e *Engine) fetchResearch(ctx context.Context, risk *contractx.CustomerRiskContext) string {
	hint := strings.TrimSpace(risk.Industry)
	if hint == "" {
		hint = risk.CustomerID
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	text, err := e.research.Research(cctx, "customer retention strategies "+hint)
	if err != nil {
		log.Warn().Err(err).
			Str("customer_id", risk.CustomerID).
			Msg("research augmentation unavailable, continuing without it")
		return ""
	}
	return strings.TrimSpace(text)
}

// callGenerator issues the generation call with one local retry for transient
// failures before the attempt is counted as consumed.
func (e *Engine) callGenerator(ctx context.Context, req contractx.GenerationRequest) (string, error) {
	draft, err := e.generateOnce(ctx, req)
	if err == nil {
		return draft, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	return e.generateOnce(ctx, req)
}

func (e *Engine) generateOnce(ctx context.Context, req contractx.GenerationRequest) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	draft, err := e.gen.Generate(cctx, req)
	if err != nil {
		return "", err
	}
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return "", fmt.Errorf("%w: generator returned empty draft", contractx.ErrSchemaViolation)
	}
	return draft, nil
}

// callEvaluator retries once on transient failure. A malformed evaluation is
// never retried.
func (e *Engine) callEvaluator(ctx context.Context, query, draft string) (contractx.Evaluation, error) {
	eval, err := e.evaluateOnce(ctx, query, draft)
	if err == nil || errors.Is(err, contractx.ErrMalformedEvaluation) || ctx.Err() != nil {
		return eval, err
	}
	return e.evaluateOnce(ctx, query, draft)
}

func (e *Engine) evaluateOnce(ctx context.Context, query, draft string) (contractx.Evaluation, error) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return e.eval.Evaluate(cctx, query, draft)
}

func buildGenerationInput(query string, feedback []string) string {
	if len(feedback) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n\nFeedback on earlier drafts:\n")
	for _, fb := range feedback {
		b.WriteString("- ")
		b.WriteString(fb)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (e *Engine) notifyStarted(attempt int) {
	if e.observer != nil {
		e.observer.AttemptStarted(attempt)
	}
}

func (e *Engine) notifyEvaluated(attempt int, eval contractx.Evaluation) {
	if e.observer != nil {
		e.observer.AttemptEvaluated(attempt, eval)
	}
}

func (e *Engine) notifyFailed(attempt int, err error) {
	if e.observer != nil {
		e.observer.AttemptFailed(attempt, err)
	}
}
