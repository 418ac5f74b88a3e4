// Package crashlib supplies "inspiration" examples for the structural
// mutation prompt: a dynamic directory of host-discovered crashes and a
// static directory of curated crash-pattern files (spec.md §4.7).
package crashlib

import (
	"math/rand/v2"
	"os"
	"path/filepath"
)

// Example is one sampled crash case plus where it came from.
type Example struct {
	Text   string
	Source string // "dynamic" or "static"
}

// Library is entirely stateless: every call rescans both directories, so
// newly discovered crashes are picked up without restart (spec.md §4.7).
type Library struct {
	DynamicDir string
	StaticDir  string
}

// New creates a Library over the two configured directories.
func New(dynamicDir, staticDir string) *Library {
	return &Library{DynamicDir: dynamicDir, StaticDir: staticDir}
}

// RandomExamples returns up to n examples, biased to take up to half from
// the dynamic source and the rest from the static source, backfilling from
// whichever side has more when one is empty (spec.md §4.7).
func (l *Library) RandomExamples(n int) ([]Example, error) {
	if n <= 0 {
		return nil, nil
	}

	dynamic, err := readDir(l.DynamicDir)
	if err != nil {
		return nil, err
	}
	static, err := readDir(l.StaticDir)
	if err != nil {
		return nil, err
	}

	rand.Shuffle(len(dynamic), func(i, j int) { dynamic[i], dynamic[j] = dynamic[j], dynamic[i] })
	rand.Shuffle(len(static), func(i, j int) { static[i], static[j] = static[j], static[i] })

	wantDynamic := n / 2
	if wantDynamic > len(dynamic) {
		wantDynamic = len(dynamic)
	}
	// wantStatic := n - wantDynamic already absorbs any dynamic shortfall
	// by construction (it simply asks for the rest of n). Only the static
	// side needs an explicit backfill check, for when static itself can't
	// cover that request and dynamic has spare capacity left over.
	wantStatic := n - wantDynamic
	if wantStatic > len(static) {
		wantStatic = len(static)
		shortfall := n - wantDynamic - wantStatic
		if shortfall > 0 {
			extra := len(dynamic) - wantDynamic
			if extra > shortfall {
				extra = shortfall
			}
			wantDynamic += extra
		}
	}

	out := make([]Example, 0, wantDynamic+wantStatic)
	for _, t := range dynamic[:wantDynamic] {
		out = append(out, Example{Text: t, Source: "dynamic"})
	}
	for _, t := range static[:wantStatic] {
		out = append(out, Example{Text: t, Source: "static"})
	}
	return out, nil
}

func readDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		texts = append(texts, string(b))
	}
	return texts, nil
}
