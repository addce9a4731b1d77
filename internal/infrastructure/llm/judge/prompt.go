package judge

import (
	"fmt"
	"strings"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

const systemPrompt = "You are a search relevance assessor. Reply with a JSON array only, no prose and no markdown."

// BuildPrompt renders the candidates as numbered blocks and asks for one
// score per docid on a 0..maxScore scale.
func BuildPrompt(req domain.JudgeRequest, maxScore float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", strings.TrimSpace(req.Query))
	b.WriteString("Rate how well each document answers the query.\n\n")
	for i, c := range req.Candidates {
		fmt.Fprintf(&b, "[DOC_%d] docid=%s\nContent: %s\n\n", i+1, c.DocumentID, c.Excerpt)
	}
	fmt.Fprintf(&b, "Score every document from 0 (irrelevant) to %g (fully answers the query).\n", maxScore)
	b.WriteString(`Output format: [{"docid": "<docid>", "score": <number>}]`)
	return b.String()
}
