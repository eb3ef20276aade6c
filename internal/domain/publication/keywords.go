package publication

import (
	"regexp"
	"sort"
	"strings"
)

var separators = regexp.MustCompile(`[\s,._-]+`)

const minPrefixLen = 2

// SearchKeywords builds the search index of a post. Tags and the author name
// are also indexed whole so an exact tag such as "red_fox" matches.
func SearchKeywords(title, author, location string, tags []string) []string {
	sources := append([]string{title, author, location}, tags...)
	exact := append([]string{author}, tags...)
	return index(sources, exact)
}

// Keywords builds a search index from free text: every lowercase word of the
// sources plus each of its prefixes of two or more characters, deduplicated
// and sorted.
func Keywords(sources ...string) []string {
	return index(sources, nil)
}

func index(sources, exact []string) []string {
	set := make(map[string]struct{})
	for _, term := range exact {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			set[term] = struct{}{}
		}
	}
	for _, src := range sources {
		for _, word := range separators.Split(strings.ToLower(src), -1) {
			if word == "" {
				continue
			}
			set[word] = struct{}{}
			runes := []rune(word)
			for n := minPrefixLen; n < len(runes); n++ {
				set[string(runes[:n])] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
