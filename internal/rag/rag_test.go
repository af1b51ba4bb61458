package rag

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivertownball/riverchat/internal/log"
)

// fakeKB returns canned retrieval results.
type fakeKB struct {
	lastInput *bedrockagentruntime.RetrieveInput
	output    *bedrockagentruntime.RetrieveOutput
	err       error
}

func (f *fakeKB) Retrieve(_ context.Context, params *bedrockagentruntime.RetrieveInput, _ ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error) {
	f.lastInput = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

// fakeStream feeds canned events, then reports err (if any) once the
// events are drained.
type fakeStream struct {
	events []runtimetypes.ResponseStream
	err    error
	closed bool
}

func (f *fakeStream) Events() <-chan runtimetypes.ResponseStream {
	ch := make(chan runtimetypes.ResponseStream, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch
}

func (f *fakeStream) Err() error   { return f.err }
func (f *fakeStream) Close() error { f.closed = true; return nil }

// fakeModel hands out a fakeStream and remembers the request.
type fakeModel struct {
	lastInput *bedrockruntime.InvokeModelWithResponseStreamInput
	stream    *fakeStream
	err       error
}

func (f *fakeModel) InvokeStream(_ context.Context, input *bedrockruntime.InvokeModelWithResponseStreamInput) (CompletionStream, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func textResult(text string) agenttypes.KnowledgeBaseRetrievalResult {
	return agenttypes.KnowledgeBaseRetrievalResult{
		Content: &agenttypes.RetrievalResultContent{Text: aws.String(text)},
	}
}

func chunk(completion string) *runtimetypes.ResponseStreamMemberChunk {
	data, _ := json.Marshal(chunkPayload{Completion: completion})
	return &runtimetypes.ResponseStreamMemberChunk{
		Value: runtimetypes.PayloadPart{Bytes: data},
	}
}

func newTestResponder(kb *fakeKB, model *fakeModel) *Responder {
	return NewResponder(Config{
		Model:           model,
		Retriever:       NewRetriever(kb, "KB123456", log.NewNop()),
		Logger:          log.NewNop(),
		ModelID:         "anthropic.claude-instant-v1",
		RetrieveTimeout: 5 * time.Second,
		GenerateTimeout: 5 * time.Second,
	})
}

func collect(seq func(func(string) bool)) []string {
	var got []string
	seq(func(s string) bool {
		got = append(got, s)
		return true
	})
	return got
}

// TestRetrieverContext checks rank-ordered assembly with a malformed
// result skipped, not raised.
func TestRetrieverContext(t *testing.T) {
	kb := &fakeKB{output: &bedrockagentruntime.RetrieveOutput{
		RetrievalResults: []agenttypes.KnowledgeBaseRetrievalResult{
			textResult("Our maple spheres are hand-turned."),
			{Content: &agenttypes.RetrievalResultContent{}}, // nothing extractable
			textResult("Prices start at $45."),
		},
	}}
	r := NewRetriever(kb, "KB123456", log.NewNop())

	got, err := r.Context(context.Background(), "how much are maple spheres?")
	require.NoError(t, err)
	assert.Equal(t, "Our maple spheres are hand-turned.\nPrices start at $45.", got)

	// Fixed top-K of 3 requested.
	cfg := kb.lastInput.RetrievalConfiguration.VectorSearchConfiguration
	assert.Equal(t, int32(3), aws.ToInt32(cfg.NumberOfResults))
	assert.Equal(t, "KB123456", aws.ToString(kb.lastInput.KnowledgeBaseId))
}

func TestPassageTextRowFallback(t *testing.T) {
	result := agenttypes.KnowledgeBaseRetrievalResult{
		Content: &agenttypes.RetrievalResultContent{
			Row: []agenttypes.RetrievalResultContentColumn{
				{ColumnName: aws.String("product"), ColumnValue: aws.String("Maple Sphere")},
				{ColumnName: aws.String("price"), ColumnValue: aws.String("$45")},
				{ColumnName: aws.String("blank"), ColumnValue: aws.String("")},
			},
		},
	}

	text, ok := passageText(result)
	require.True(t, ok)
	assert.Equal(t, "product: Maple Sphere, price: $45", text)

	_, ok = passageText(agenttypes.KnowledgeBaseRetrievalResult{})
	assert.False(t, ok)
}

func TestRespond(t *testing.T) {
	kb := &fakeKB{output: &bedrockagentruntime.RetrieveOutput{
		RetrievalResults: []agenttypes.KnowledgeBaseRetrievalResult{
			textResult("Maple spheres cost $45."),
		},
	}}
	model := &fakeModel{stream: &fakeStream{events: []runtimetypes.ResponseStream{
		chunk("Maple "),
		chunk(""), // empty completion fields are tolerated, not fatal
		chunk("spheres "),
		chunk("cost $45."),
	}}}
	r := newTestResponder(kb, model)

	got := collect(r.Respond(context.Background(), "how much?", nil))
	assert.Equal(t, []string{"Maple ", "spheres ", "cost $45."}, got)
	assert.True(t, model.stream.closed)

	// Decode the request body and verify the fixed decoding parameters.
	var body invokeBody
	require.NoError(t, json.Unmarshal(model.lastInput.Body, &body))
	assert.Equal(t, 2048, body.MaxTokensToSample)
	assert.Equal(t, 0.7, body.Temperature)
	assert.Equal(t, 1.0, body.TopP)
	assert.Equal(t, []string{"\n\nHuman:", "\n\nAssistant:"}, body.StopSequences)
	assert.Equal(t, "bedrock-2023-05-31", body.AnthropicVersion)
	assert.Contains(t, body.Prompt, "Rivertown Ball Company")
	assert.Contains(t, body.Prompt, "Context: Maple spheres cost $45.")
	assert.Contains(t, body.Prompt, "Human: how much?")
	assert.True(t, len(body.Prompt) > 0 && body.Prompt[len(body.Prompt)-len("Assistant:"):] == "Assistant:")
}

func TestRespondCarriesHistory(t *testing.T) {
	kb := &fakeKB{output: &bedrockagentruntime.RetrieveOutput{}}
	model := &fakeModel{stream: &fakeStream{events: []runtimetypes.ResponseStream{chunk("ok")}}}
	r := newTestResponder(kb, model)

	history := []Turn{
		{Text: "do you ship overseas?"},
		{Assistant: true, Text: "We ship worldwide."},
	}
	collect(r.Respond(context.Background(), "how long to Japan?", history))

	var body invokeBody
	require.NoError(t, json.Unmarshal(model.lastInput.Body, &body))
	assert.Contains(t, body.Prompt, "Human: do you ship overseas?")
	assert.Contains(t, body.Prompt, "Assistant: We ship worldwide.")

	// History precedes the current question.
	assert.Less(t,
		strings.Index(body.Prompt, "do you ship overseas?"),
		strings.Index(body.Prompt, "how long to Japan?"))
}

func TestRespondRetrievalFault(t *testing.T) {
	kb := &fakeKB{err: errors.New("kb unavailable")}
	model := &fakeModel{stream: &fakeStream{}}
	r := newTestResponder(kb, model)

	got := collect(r.Respond(context.Background(), "hello", nil))
	assert.Equal(t, []string{Apology}, got)
	// Generation must never be attempted after a retrieval fault.
	assert.Nil(t, model.lastInput)
}

func TestRespondInvokeFault(t *testing.T) {
	kb := &fakeKB{output: &bedrockagentruntime.RetrieveOutput{}}
	model := &fakeModel{err: errors.New("model down")}
	r := newTestResponder(kb, model)

	got := collect(r.Respond(context.Background(), "hello", nil))
	assert.Equal(t, []string{Apology}, got)
}

// TestRespondMidStreamFault: a fault after partial output yields exactly
// one apology fragment and terminates the sequence.
func TestRespondMidStreamFault(t *testing.T) {
	kb := &fakeKB{output: &bedrockagentruntime.RetrieveOutput{}}
	model := &fakeModel{stream: &fakeStream{
		events: []runtimetypes.ResponseStream{chunk("partial ")},
		err:    errors.New("connection reset"),
	}}
	r := newTestResponder(kb, model)

	got := collect(r.Respond(context.Background(), "hello", nil))
	require.NotEmpty(t, got)
	assert.Equal(t, Apology, got[len(got)-1])
	assert.Equal(t, 1, countOf(got, Apology))
}

// TestRespondGarbledChunk: an undecodable chunk ends the stream with the
// apology instead of surfacing garbage.
func TestRespondGarbledChunk(t *testing.T) {
	kb := &fakeKB{output: &bedrockagentruntime.RetrieveOutput{}}
	model := &fakeModel{stream: &fakeStream{events: []runtimetypes.ResponseStream{
		&runtimetypes.ResponseStreamMemberChunk{
			Value: runtimetypes.PayloadPart{Bytes: []byte("{not json")},
		},
		chunk("never delivered"),
	}}}
	r := newTestResponder(kb, model)

	got := collect(r.Respond(context.Background(), "hello", nil))
	assert.Equal(t, []string{Apology}, got)
}

func countOf(ss []string, want string) int {
	n := 0
	for _, s := range ss {
		if s == want {
			n++
		}
	}
	return n
}
