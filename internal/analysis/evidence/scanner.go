package evidence

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Bucket 把一组关键词映射到一个候选发现（优势、主题等）。
type Bucket struct {
	Name        string
	Category    string
	Description string
	Keywords    []string
}

// Match 是关键词扫描的命中结果。
type Match struct {
	Bucket Bucket
	Score  int
	Quotes []string
}

const (
	keywordWeight = 3
	maxQuotes     = 3
	maxQuoteRunes = 160
)

// Scan 在用户的原话中查找每个 bucket 的关键词，按得分从高到低返回命中项。
// 得分相同时保持 buckets 的原始顺序，结果完全确定。
func Scan(texts []string, buckets []Bucket) []Match {
	matches := make([]Match, 0, len(buckets))
	for _, bucket := range buckets {
		match := Match{Bucket: bucket}
		for _, text := range texts {
			normalized := strings.ToLower(strings.TrimSpace(text))
			if normalized == "" {
				continue
			}
			hit := false
			for _, word := range bucket.Keywords {
				if word == "" {
					continue
				}
				if strings.Contains(normalized, strings.ToLower(word)) {
					match.Score += keywordWeight
					hit = true
				}
			}
			if hit && len(match.Quotes) < maxQuotes {
				match.Quotes = append(match.Quotes, quote(text))
			}
		}
		if match.Score > 0 {
			matches = append(matches, match)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func quote(text string) string {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= maxQuoteRunes {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:maxQuoteRunes])) + "…"
}
