package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/rivertownball/riverchat/internal/log"
)

// systemPrompt is the fixed persona and grounding directive. The model
// answers only from the supplied search results, never reveals that a
// search happened, and never cites sources.
const systemPrompt = `You are a friendly and knowledgeable question-answering agent for the Rivertown Ball Company. Your mission is to assist users by answering their questions based on a set of provided search results. Your goal is to provide accurate, helpful, and engaging answers. Remember, your personality shines through—you are warm, approachable, and helpful, while also being precise and trustworthy. Also note the company sells high end exotic designer wooden craft balls. While we do have many different designs, styles, and options, we do not make sports balls.

I will provide you with a set of search results that may contain the information needed to answer the user's question. The user will ask you a question, and it's your job to answer it using only the information from the search results. If the search results do not contain the information needed to answer the question, let the user know politely that you don't know the answer to their question.

Don't let the user know you searched for the answer, just present it as you knew it the entire time as fact. Do not ever cite any sources.

If the user asserts something as a fact, don't automatically accept it—double-check it against the search results to make sure it's accurate. Your job is to be both supportive and trustworthy, so validating information is key.`

// Apology is the single fragment surfaced when retrieval, prompt
// construction, or generation faults.
const Apology = "I apologize, but I encountered an error while processing your request."

// Fixed decoding parameters.
const (
	maxTokensToSample = 2048
	temperature       = 0.7
	topP              = 1.0
	anthropicVersion  = "bedrock-2023-05-31"
)

// stopSequences mark turn boundaries in the completion.
var stopSequences = []string{"\n\nHuman:", "\n\nAssistant:"}

// CompletionStream is the event stream of one generation call. The
// real implementation is the SDK's InvokeModelWithResponseStream event
// stream; tests substitute a fake feeding canned events.
type CompletionStream interface {
	Events() <-chan runtimetypes.ResponseStream
	Err() error
	Close() error
}

// ModelStreamer starts a streaming generation call.
type ModelStreamer interface {
	InvokeStream(ctx context.Context, input *bedrockruntime.InvokeModelWithResponseStreamInput) (CompletionStream, error)
}

// BedrockModel adapts a bedrockruntime client to ModelStreamer.
type BedrockModel struct {
	Client *bedrockruntime.Client
}

// InvokeStream implements ModelStreamer.
func (m *BedrockModel) InvokeStream(ctx context.Context, input *bedrockruntime.InvokeModelWithResponseStreamInput) (CompletionStream, error) {
	out, err := m.Client.InvokeModelWithResponseStream(ctx, input)
	if err != nil {
		return nil, err
	}
	return out.GetStream(), nil
}

// Turn is one prior exchange carried into the prompt.
type Turn struct {
	Assistant bool
	Text      string
}

// Config collects the responder's dependencies and settings.
type Config struct {
	Model     ModelStreamer
	Retriever *Retriever
	Logger    log.Logger

	// ModelID is the Bedrock model identifier used for generation.
	ModelID string

	// RetrieveTimeout and GenerateTimeout bound the two external calls;
	// GenerateTimeout covers the whole streamed consumption.
	RetrieveTimeout time.Duration
	GenerateTimeout time.Duration
}

// Responder produces grounded streaming answers.
type Responder struct {
	model           ModelStreamer
	retriever       *Retriever
	modelID         string
	retrieveTimeout time.Duration
	generateTimeout time.Duration
	logger          log.Logger
}

// NewResponder creates a Responder from cfg.
func NewResponder(cfg Config) *Responder {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &Responder{
		model:           cfg.Model,
		retriever:       cfg.Retriever,
		modelID:         cfg.ModelID,
		retrieveTimeout: cfg.RetrieveTimeout,
		generateTimeout: cfg.GenerateTimeout,
		logger:          logger,
	}
}

// invokeBody is the Anthropic text-completion request payload.
type invokeBody struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	StopSequences     []string `json:"stop_sequences"`
	AnthropicVersion  string   `json:"anthropic_version"`
}

// chunkPayload is one decoded streaming event. Absence of the
// completion field is tolerated, not fatal.
type chunkPayload struct {
	Completion string `json:"completion"`
}

// Respond retrieves grounding context for question, assembles the
// prompt (including up to the configured window of prior turns), and
// streams the generated answer fragment by fragment in arrival order.
//
// The sequence is finite and not restartable. If anything faults (the
// retrieval query, marshaling, the model invocation, or the stream
// itself), the sequence yields Apology exactly once and ends; partial
// garbled output is never surfaced after a fault.
func (r *Responder) Respond(ctx context.Context, question string, history []Turn) iter.Seq[string] {
	return func(yield func(string) bool) {
		retrieveCtx, cancelRetrieve := context.WithTimeout(ctx, r.retrieveTimeout)
		kbContext, err := r.retriever.Context(retrieveCtx, question)
		cancelRetrieve()
		if err != nil {
			r.logger.Error("retrieval failed", "error", err)
			yield(Apology)
			return
		}

		body, err := json.Marshal(invokeBody{
			Prompt:            buildPrompt(kbContext, history, question),
			MaxTokensToSample: maxTokensToSample,
			Temperature:       temperature,
			TopP:              topP,
			StopSequences:     stopSequences,
			AnthropicVersion:  anthropicVersion,
		})
		if err != nil {
			r.logger.Error("marshaling generation request", "error", err)
			yield(Apology)
			return
		}

		generateCtx, cancelGenerate := context.WithTimeout(ctx, r.generateTimeout)
		defer cancelGenerate()

		stream, err := r.model.InvokeStream(generateCtx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(r.modelID),
			Body:        body,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		if err != nil {
			r.logger.Error("invoking generation model", "error", err)
			yield(Apology)
			return
		}
		defer stream.Close()

		for event := range stream.Events() {
			chunk, ok := event.(*runtimetypes.ResponseStreamMemberChunk)
			if !ok {
				continue
			}

			var payload chunkPayload
			if err := json.Unmarshal(chunk.Value.Bytes, &payload); err != nil {
				r.logger.Error("decoding stream chunk", "error", err)
				yield(Apology)
				return
			}
			if payload.Completion == "" {
				continue
			}
			if !yield(payload.Completion) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			r.logger.Error("generation stream failed", "error", err)
			yield(Apology)
		}
	}
}

// buildPrompt assembles the Human/Assistant turn structure: persona and
// grounding instruction, context block, the capped prior exchange, then
// the current question.
func buildPrompt(kbContext string, history []Turn, question string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n\nHuman: %s\n\nContext: %s", systemPrompt, kbContext)

	for _, turn := range history {
		role := "Human"
		if turn.Assistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "\n\n%s: %s", role, turn.Text)
	}

	fmt.Fprintf(&b, "\n\nHuman: %s\n\nAssistant:", question)
	return b.String()
}
