package llmclient

import "regexp"

// sqlFenceRE matches ```sql ... ``` blocks, case-insensitive on the tag.
var sqlFenceRE = regexp.MustCompile("(?is)```sql\\s*\\n(.*?)```")

// codeFenceRE matches fenced blocks tagged with a general-purpose-language
// tag (e.g. ```python). The bare ``` form has no tag and does not match;
// ```sql blocks do match and are filtered out by ExtractCodeBlocks.
var codeFenceRE = regexp.MustCompile("(?is)```([a-zA-Z0-9_+-]+)\\s*\\n(.*?)```")

// ExtractSQLBlocks returns the inner contents of every ```sql fenced block,
// in document order. Callers take the first (spec.md §4.8).
func ExtractSQLBlocks(text string) []string {
	matches := sqlFenceRE.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// ExtractCodeBlocks returns the inner contents of every fenced block
// tagged with a general-purpose-language tag (e.g. ```python), in document
// order, excluding ```sql blocks.
func ExtractCodeBlocks(text string) []string {
	matches := codeFenceRE.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) < 3 {
			continue
		}
		if equalFoldASCII(m[1], "sql") {
			continue
		}
		out = append(out, m[2])
	}
	return out
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
