package rank

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/sectionrank/internal/llm"
)

// ErrRankingUnparsable is returned when the model response has no usable
// structure.
var ErrRankingUnparsable = errors.New("ranking response unparsable")

// Proposal is one model-suggested heading, before validation.
type Proposal struct {
	DocumentID     string `json:"document"`
	HeadingText    string `json:"section_title"`
	ImportanceRank int    `json:"importance_rank"`
	Position       int    `json:"-"` // 1-based order in the response
}

// Parse extracts proposals from raw model text. It tolerates reasoning
// preambles, code fences, a bare array instead of the wrapping object, and a
// few common alternative key names. It never consults the candidate set.
func Parse(raw string) ([]Proposal, error) {
	text := llm.Clean(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrRankingUnparsable)
	}

	items, err := decodeItems(text)
	if err != nil {
		if span := firstJSON(text); span != "" && span != text {
			items, err = decodeItems(span)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRankingUnparsable, err)
	}

	out := make([]Proposal, 0, len(items))
	for _, it := range items {
		p := Proposal{
			DocumentID:     stringField(it, "document", "document_id", "doc"),
			HeadingText:    stringField(it, "section_title", "heading_text", "heading", "title"),
			ImportanceRank: intField(it, "importance_rank", "rank"),
		}
		if p.DocumentID == "" && p.HeadingText == "" {
			continue
		}
		p.Position = len(out) + 1
		out = append(out, p)
	}
	if len(items) > 0 && len(out) == 0 {
		return nil, fmt.Errorf("%w: no item has document or section_title", ErrRankingUnparsable)
	}
	return out, nil
}

func decodeItems(text string) ([]map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		return objects(t)
	case map[string]any:
		for _, key := range []string{"extracted_sections", "sections", "ranked_sections", "results"} {
			if arr, ok := t[key].([]any); ok {
				return objects(arr)
			}
		}
		// A single object is read as a one-item list.
		if _, ok := t["section_title"]; ok {
			return []map[string]any{t}, nil
		}
		return nil, errors.New("no section list in response object")
	}
	return nil, fmt.Errorf("unexpected json %T", v)
}

func objects(arr []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("list element is %T, want object", el)
		}
		out = append(out, m)
	}
	return out, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func intField(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

// firstJSON returns the first balanced {...} or [...] span in s, skipping
// brackets inside strings.
func firstJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
