package pipeline

import "regexp"

var jsonFenceRE = regexp.MustCompile("(?is)```json\\s*\\n(.*?)```")

// extractJSONFence pulls the contents of ```json fenced blocks, the same
// extraction shape llmclient and repair use for their own fenced tags.
func extractJSONFence(text string) []string {
	matches := jsonFenceRE.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
