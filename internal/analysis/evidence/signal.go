package evidence

import (
	"regexp"
	"strings"
)

// Verdict 描述一条用户回复是否在推进对话。
type Verdict struct {
	Substantive bool
	Reason      string
}

var deflectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(nothing|none|no idea|can't think|cant think|don't remember|dont remember|idk|dunno)[.!]*$`),
	regexp.MustCompile(`(?i)^(skip|pass|next)\b`),
	regexp.MustCompile(`(?i)^(i don't know|i dont know|not sure)[.!]*$`),
	regexp.MustCompile(`^(不知道|没有|跳过|随便|不清楚)[。！!]*$`),
}

var metaQuestionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(what|how|why) (do|should|can|will) (you|we|i|this)\b`),
	regexp.MustCompile(`(?i)what('s| is) (this|the|next)\b`),
	regexp.MustCompile(`(?i)how (long|many|much)\b`),
	regexp.MustCompile(`(?i)^(can you|could you|will you|would you) (help|tell|explain)\b`),
}

var storyMarkers = regexp.MustCompile(`(?i)\b(when|because|so|then|after|during)\b`)

// metaQuestionWordLimit 以上的长问题通常夹带了用户自己的经历。
const metaQuestionWordLimit = 15

// Judge 判断用户的回复是否属于有效分享，而不是回避或询问流程本身。
func Judge(text string) Verdict {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Verdict{Reason: "empty"}
	}

	for _, pattern := range deflectionPatterns {
		if pattern.MatchString(trimmed) {
			return Verdict{Reason: "deflection"}
		}
	}

	words := len(strings.Fields(trimmed))
	if words < metaQuestionWordLimit {
		for _, pattern := range metaQuestionPatterns {
			if pattern.MatchString(trimmed) {
				return Verdict{Reason: "meta question"}
			}
		}
	}

	if strings.HasSuffix(trimmed, "?") && words <= 20 && !storyMarkers.MatchString(trimmed) {
		return Verdict{Reason: "bare question"}
	}

	return Verdict{Substantive: true}
}

// CountSubstantive 统计有效分享的条数。
func CountSubstantive(texts []string) int {
	count := 0
	for _, text := range texts {
		if Judge(text).Substantive {
			count++
		}
	}
	return count
}
