// Package rag answers product questions with retrieval-augmented
// generation: relevant passages are fetched from the Bedrock knowledge
// base, folded into a grounded prompt, and streamed through the
// generation model. Any fault along the way degrades to a single
// apology fragment; nothing here ever surfaces an error to the user.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/rivertownball/riverchat/internal/log"
)

// topK is the fixed number of passages requested per query.
const topK = 3

// KnowledgeQuerier is the slice of the Bedrock agent-runtime API the
// retriever consumes. Tests substitute a fake.
type KnowledgeQuerier interface {
	Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// Retriever queries the knowledge base and assembles grounding context.
type Retriever struct {
	client KnowledgeQuerier
	kbID   string
	logger log.Logger
}

// NewRetriever creates a retriever over the given knowledge base.
func NewRetriever(client KnowledgeQuerier, kbID string, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		client: client,
		kbID:   kbID,
		logger: logger,
	}
}

// Context performs a semantic query and returns the extracted passages
// newline-joined in retrieval-rank order. A result whose text cannot be
// extracted is skipped and logged, not fatal. An empty context with a
// nil error means retrieval succeeded but found nothing usable.
func (r *Retriever) Context(ctx context.Context, query string) (string, error) {
	out, err := r.client.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(r.kbID),
		RetrievalQuery: &agenttypes.KnowledgeBaseQuery{
			Text: aws.String(query),
		},
		RetrievalConfiguration: &agenttypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &agenttypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(topK),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("querying knowledge base: %w", err)
	}

	passages := make([]string, 0, len(out.RetrievalResults))
	for i, result := range out.RetrievalResults {
		text, ok := passageText(result)
		if !ok {
			r.logger.Warn("retrieval result has no extractable text", "rank", i)
			continue
		}
		passages = append(passages, text)
	}

	r.logger.Debug("knowledge base queried",
		"results", len(out.RetrievalResults), "passages", len(passages))

	return strings.Join(passages, "\n"), nil
}

// passageText extracts display text from a retrieval result. Results
// carry content in one of several shapes depending on the data source;
// resolution is an ordered fallback over the known variants: plain
// text first, then tabular rows flattened to "name: value" pairs.
func passageText(result agenttypes.KnowledgeBaseRetrievalResult) (string, bool) {
	content := result.Content
	if content == nil {
		return "", false
	}

	if content.Text != nil && *content.Text != "" {
		return *content.Text, true
	}

	if len(content.Row) > 0 {
		parts := make([]string, 0, len(content.Row))
		for _, col := range content.Row {
			if col.ColumnValue == nil || *col.ColumnValue == "" {
				continue
			}
			name := ""
			if col.ColumnName != nil {
				name = *col.ColumnName + ": "
			}
			parts = append(parts, name+*col.ColumnValue)
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", "), true
		}
	}

	return "", false
}
