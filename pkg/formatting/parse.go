package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when no JSON value of the target type can be
// recovered from the content.
var ErrParseFailed = errors.New("failed to parse response")

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Parse recovers a JSON value of type T from model output. Candidates are
// tried in order: the body of the first markdown code fence, the span from the
// first '{' to the last '}', and the whole trimmed content.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	for _, candidate := range candidates(content) {
		var v T
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			return v, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, truncate(content, 200))
}

func candidates(content string) []string {
	var out []string

	if m := fencePattern.FindStringSubmatch(content); len(m) >= 2 {
		out = append(out, strings.TrimSpace(m[1]))
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		out = append(out, content[start:end+1])
	}

	return append(out, content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
