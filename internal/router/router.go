// Package router is the turn orchestrator: given a raw utterance and
// the conversation's session, it decides which capability handles the
// turn, drives the handler, and updates session state from the
// structured outcome.
//
// Classification runs in fixed priority order, first match wins:
//
//  1. order-intent phrasing with an extractable name  → order lookup
//     (terminal even when the lookup fails)
//  2. customer-service trigger phrase, or the session already awaiting
//     a phone number, or a digit-dominant utterance → escalation
//  3. everything else → retrieval-augmented answer (default path)
//
// Handlers report state transitions through an explicit directive on
// their outcome rather than marker phrases in the reply text, so the
// wording of a reply can change without breaking the state machine.
package router

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rivertownball/riverchat/internal/extract"
	"github.com/rivertownball/riverchat/internal/log"
	"github.com/rivertownball/riverchat/internal/orders"
	"github.com/rivertownball/riverchat/internal/rag"
	"github.com/rivertownball/riverchat/internal/session"
	"github.com/rivertownball/riverchat/internal/voice"
)

// Fixed negative replies for the order-lookup path. Every failure mode
// degrades to text; nothing on this path returns an error to the caller.
const (
	notFoundReplyFmt  = "I'm sorry, I couldn't find any orders for %s %s. Could you double-check the spelling of the name?"
	storeTroubleReply = "I'm having trouble reaching our order system right now. Please try again in a few minutes."
	noOrdersReplyFmt  = "I found %s %s in our records, but there are no orders on file yet."
	tableIntroFmt     = "Here's what I found for %s %s:\n\n%s"
)

// OrderFinder is the order-lookup capability the router dispatches to.
type OrderFinder interface {
	Lookup(ctx context.Context, firstName, lastName string) ([]orders.Order, error)
}

// EscalationHandler is the callback-escalation capability.
type EscalationHandler interface {
	Handle(ctx context.Context, utterance string) voice.Result
}

// Answerer is the retrieval-augmented fallback capability.
type Answerer interface {
	Respond(ctx context.Context, question string, history []rag.Turn) iter.Seq[string]
}

// Reply is one turn's response: either a complete text or a lazy
// fragment sequence (finite, not restartable). Exactly one of the two
// is set.
type Reply struct {
	Text   string
	Stream iter.Seq[string]
}

// Streaming reports whether the reply arrives as a fragment sequence.
func (r Reply) Streaming() bool {
	return r.Stream != nil
}

// Config collects the router's dependencies.
type Config struct {
	Orders    OrderFinder
	Escalator EscalationHandler
	Answerer  Answerer
	Names     extract.NameExtractor
	Logger    log.Logger

	// StoreTimeout bounds one customer-store query.
	StoreTimeout time.Duration

	// MaxHistoryMessages caps the prior turns carried into the
	// generation prompt.
	MaxHistoryMessages int
}

func (cfg Config) validate() error {
	if cfg.Orders == nil {
		return fmt.Errorf("order finder is required")
	}
	if cfg.Escalator == nil {
		return fmt.Errorf("escalation handler is required")
	}
	if cfg.Answerer == nil {
		return fmt.Errorf("answerer is required")
	}
	return nil
}

// Router dispatches turns. It is stateless; all conversational state
// lives in the session passed to Route.
type Router struct {
	orders       OrderFinder
	escalator    EscalationHandler
	answerer     Answerer
	names        extract.NameExtractor
	storeTimeout time.Duration
	maxHistory   int
	logger       log.Logger
}

// New creates a Router from cfg.
func New(cfg Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	names := cfg.Names
	if names == nil {
		names = extract.NewNames()
	}
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 10 * time.Second
	}
	return &Router{
		orders:       cfg.Orders,
		escalator:    cfg.Escalator,
		answerer:     cfg.Answerer,
		names:        names,
		storeTimeout: storeTimeout,
		maxHistory:   cfg.MaxHistoryMessages,
		logger:       logger,
	}, nil
}

// Route processes one turn: classify, dispatch to exactly one handler,
// surface its reply, and update the session. The user message and the
// completed assistant reply are appended to the transcript (for
// streamed replies, once the stream has been consumed).
func (r *Router) Route(ctx context.Context, utterance string, sess *session.Session) Reply {
	// History is captured before the current utterance joins the
	// transcript so the prompt does not repeat the question.
	history := sess.Recent(r.maxHistory)
	sess.Append(session.RoleUser, utterance)

	if first, last, ok := r.orderIntent(utterance); ok {
		reply := r.lookupOrders(ctx, first, last)
		sess.Append(session.RoleAssistant, reply)
		r.logger.Info("turn routed", "handler", "orders", "session_id", sess.ID)
		return Reply{Text: reply}
	}

	if voice.IsTrigger(utterance) ||
		sess.Mode() == session.ModeAwaitingPhone ||
		extract.DigitCount(utterance) >= voice.MinPhoneDigits {
		if reply, handled := r.escalate(ctx, utterance, sess); handled {
			sess.Append(session.RoleAssistant, reply)
			r.logger.Info("turn routed", "handler", "escalation", "session_id", sess.ID)
			return Reply{Text: reply}
		}
		// Defensive fallthrough: the escalator declined the turn.
	}

	r.logger.Info("turn routed", "handler", "rag", "session_id", sess.ID)
	return Reply{Stream: r.answer(ctx, utterance, history, sess)}
}

// Reset clears the session unconditionally. Idempotent.
func (r *Router) Reset(sess *session.Session) {
	sess.Reset()
	r.logger.Info("session reset", "session_id", sess.ID)
}

// orderIntent reports whether the utterance is an order lookup: it must
// mention orders and yield a name pair.
func (r *Router) orderIntent(utterance string) (first, last string, ok bool) {
	if !extract.HasOrderIntent(utterance) {
		return "", "", false
	}
	return r.names.ExtractName(utterance)
}

// lookupOrders runs the order lookup and renders the result. Always
// returns user-facing text; a failed lookup is still a final answer.
func (r *Router) lookupOrders(ctx context.Context, first, last string) string {
	lookupCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	found, err := r.orders.Lookup(lookupCtx, first, last)
	switch {
	case errors.Is(err, orders.ErrCustomerNotFound):
		return fmt.Sprintf(notFoundReplyFmt, first, last)
	case err != nil:
		r.logger.Error("order lookup failed", "error", err)
		return storeTroubleReply
	case len(found) == 0:
		return fmt.Sprintf(noOrdersReplyFmt, first, last)
	default:
		return fmt.Sprintf(tableIntroFmt, first, last, orders.FormatTable(found))
	}
}

// escalate runs the escalation handler and applies its state directive.
// handled is false when the handler declined the turn.
func (r *Router) escalate(ctx context.Context, utterance string, sess *session.Session) (string, bool) {
	result := r.escalator.Handle(ctx, utterance)
	if result.Reply == "" {
		return "", false
	}

	if result.AskedNumber {
		sess.AwaitPhone()
	}
	if result.Phone != "" {
		sess.CapturePhone(result.Phone)
	}
	if result.CallPlaced {
		sess.EndEscalation()
	}

	return result.Reply, true
}

// answer streams the retrieval-augmented response, accumulating the
// fragments so the completed reply can join the transcript.
func (r *Router) answer(ctx context.Context, utterance string, history []session.Message, sess *session.Session) iter.Seq[string] {
	turns := make([]rag.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, rag.Turn{
			Assistant: m.Role == session.RoleAssistant,
			Text:      m.Content,
		})
	}

	seq := r.answerer.Respond(ctx, utterance, turns)
	return func(yield func(string) bool) {
		var full strings.Builder
		for fragment := range seq {
			full.WriteString(fragment)
			if !yield(fragment) {
				break
			}
		}
		if full.Len() > 0 {
			sess.Append(session.RoleAssistant, full.String())
		}
	}
}
