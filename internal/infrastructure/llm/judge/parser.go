package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

var flatObject = regexp.MustCompile(`\{[^{}]*\}`)

// Parse extracts judgments from a model reply. It tolerates fenced blocks,
// prose around the payload and loosely typed fields. Scores are clamped to
// [0, maxScore] and the first judgment for a docid wins.
func Parse(raw string, maxScore float64) ([]domain.Judgment, error) {
	text := stripFence(strings.TrimSpace(raw))

	objects, ok := arrayObjects(text)
	if !ok {
		for _, m := range flatObject.FindAllString(text, -1) {
			objects = append(objects, json.RawMessage(m))
		}
		if len(objects) == 0 {
			return nil, domain.WrapError(domain.ErrMalformedJudgment, "parse judgment", fmt.Errorf("no json array or object in %q", abbreviate(text)))
		}
	}

	seen := make(map[domain.DocumentID]struct{}, len(objects))
	out := make([]domain.Judgment, 0, len(objects))
	for _, obj := range objects {
		j, ok := decodeEntry(obj, maxScore)
		if !ok {
			continue
		}
		if _, dup := seen[j.DocumentID]; dup {
			continue
		}
		seen[j.DocumentID] = struct{}{}
		out = append(out, j)
	}
	if len(objects) > 0 && len(out) == 0 {
		return nil, domain.WrapError(domain.ErrMalformedJudgment, "parse judgment", fmt.Errorf("no usable entries in %q", abbreviate(text)))
	}
	return out, nil
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}

func arrayObjects(text string) ([]json.RawMessage, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
		return nil, false
	}
	return items, true
}

func decodeEntry(obj json.RawMessage, maxScore float64) (domain.Judgment, bool) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return domain.Judgment{}, false
	}

	id := docID(fields["docid"])
	if id == "" {
		id = docID(fields["doc_id"])
	}
	if id == "" {
		return domain.Judgment{}, false
	}
	score, ok := number(fields["score"])
	if !ok {
		return domain.Judgment{}, false
	}
	return domain.Judgment{DocumentID: domain.DocumentID(id), Score: clamp(score, maxScore)}, true
}

func docID(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func number(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp(score, maxScore float64) float64 {
	if score < 0 {
		return 0
	}
	if maxScore > 0 && score > maxScore {
		return maxScore
	}
	return score
}

func abbreviate(s string) string {
	r := []rune(s)
	if len(r) <= 80 {
		return s
	}
	return string(r[:80]) + "..."
}
