package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SearchHit is one matching document.
type SearchHit[T any] struct {
	Index   string
	ID      string
	Score   float64
	Routing string
	Content T
}

// SearchHits is the decoded result of a search request.
type SearchHits[T any] struct {
	Total    int64
	MaxScore float64
	Hits     []SearchHit[T]
}

// Contents returns the decoded documents in hit order.
func (h *SearchHits[T]) Contents() []T {
	contents := make([]T, len(h.Hits))
	for i, hit := range h.Hits {
		contents[i] = hit.Content
	}
	return contents
}

type searchResponse struct {
	Hits struct {
		Total    hitsTotal `json:"total"`
		MaxScore *float64  `json:"max_score"`
		Hits     []struct {
			Index   string          `json:"_index"`
			ID      string          `json:"_id"`
			Score   *float64        `json:"_score"`
			Routing string          `json:"_routing"`
			Source  json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// hitsTotal accepts both {"value": n} and the older plain number.
type hitsTotal int64

func (t *hitsTotal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = hitsTotal(n)
		return nil
	}
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*t = hitsTotal(obj.Value)
	return nil
}

func decodeHits[T any](raw json.RawMessage, decode func(id string, source json.RawMessage) (T, error)) (*SearchHits[T], error) {
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &SearchHits[T]{
		Total: int64(resp.Hits.Total),
		Hits:  make([]SearchHit[T], 0, len(resp.Hits.Hits)),
	}
	if resp.Hits.MaxScore != nil {
		result.MaxScore = *resp.Hits.MaxScore
	}
	for _, h := range resp.Hits.Hits {
		content, err := decode(h.ID, h.Source)
		if err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", h.ID, err)
		}
		hit := SearchHit[T]{Index: h.Index, ID: h.ID, Routing: h.Routing, Content: content}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}
