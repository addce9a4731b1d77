package usecase

import (
	"strings"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

const fingerprintRunes = 50

type DedupeOptions struct {
	// ContentFingerprint also collapses records whose leading content is identical.
	ContentFingerprint bool
}

// Dedupe keeps the first record of every identity key, preserving order, and
// stops once limit records are kept. A dropped duplicate's score is discarded.
// A non-positive limit keeps nothing. It returns the kept records and the
// number of duplicates dropped.
func Dedupe(records []domain.Candidate, limit int, opts DedupeOptions) ([]domain.Candidate, int) {
	if limit <= 0 {
		return []domain.Candidate{}, 0
	}
	capacity := min(len(records), limit)
	out := make([]domain.Candidate, 0, capacity)
	seen := make(map[string]struct{}, len(records))
	dropped := 0

	for _, rec := range records {
		if len(out) >= limit {
			break
		}
		key := domain.IdentityKey(rec.DocumentID, rec.URL)
		if _, dup := seen[key]; dup {
			dropped++
			continue
		}
		if opts.ContentFingerprint {
			if fp := contentFingerprint(rec.Content); fp != "" {
				if _, dup := seen[fp]; dup {
					dropped++
					continue
				}
				seen[fp] = struct{}{}
			}
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out, dropped
}

func contentFingerprint(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	return "fp:" + truncateRunes(trimmed, fingerprintRunes)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
