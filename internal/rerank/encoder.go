// Package rerank re-orders the head of a ranking with a cross-encoder that
// scores (query, document text) pairs jointly.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

// CrossEncoder returns one relevance score per document text, higher is
// better. Implementations must return exactly len(docs) scores.
type CrossEncoder interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
	Name() string
}

// DocText joins the fields of a document the way the cross-encoder was
// trained to read them. Missing fields render as empty strings.
func DocText(title, body, keywords string) string {
	return "Title: " + title + " Body: " + body + " Keywords: " + keywords
}

type scoreRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// HTTPEncoder calls a scoring service that accepts
// {"query": ..., "documents": [...]} and answers {"scores": [...]}.
type HTTPEncoder struct {
	endpoint string
	client   *http.Client
}

func NewHTTPEncoder(endpoint string, timeout time.Duration) *HTTPEncoder {
	return &HTTPEncoder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEncoder) Name() string { return "http:" + e.endpoint }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cross-encoder returned %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

func (e *HTTPEncoder) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	body, err := json.Marshal(scoreRequest{Query: query, Documents: docs})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling cross-encoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Scores) != len(docs) {
		return nil, apperrors.Newf(apperrors.ErrInternal, "rerank.HTTPEncoder",
			"got %d scores for %d documents", len(out.Scores), len(docs))
	}
	return out.Scores, nil
}

// OverlapEncoder is an offline stand-in: the score is the fraction of
// analysed query terms present in the analysed document text.
type OverlapEncoder struct {
	Analyzer analysis.Analyzer
}

func (o OverlapEncoder) Name() string { return "overlap" }

func (o OverlapEncoder) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	terms := o.Analyzer.Analyze(query)
	scores := make([]float64, len(docs))
	if len(terms) == 0 {
		return scores, nil
	}
	for i, text := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		present := make(map[string]struct{})
		for _, t := range o.Analyzer.Analyze(text) {
			present[t] = struct{}{}
		}
		hits := 0
		for _, t := range terms {
			if _, ok := present[t]; ok {
				hits++
			}
		}
		scores[i] = float64(hits) / float64(len(terms))
	}
	return scores, nil
}
