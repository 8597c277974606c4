package model

import (
	"fmt"
	"strings"
	"unicode"
)

type ProblemFilter struct {
	Difficulty  string
	RatingRange *RatingRange
	Tags        []string
}

// Problem is a catalog item picked for a job run.
type Problem struct {
	Source    string
	ContestID int
	Index     string
	Name      string
	Rating    int
	Tags      []string
	URL       string
}

// ID is the stable key used for deduplication across runs.
func (p Problem) ID() string {
	return fmt.Sprintf("%s:%d:%s", p.Source, p.ContestID, p.Index)
}

func (p Problem) Slug() string {
	var b strings.Builder
	for _, r := range p.Name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		return strings.ToLower(fmt.Sprintf("%d%s", p.ContestID, p.Index))
	}
	return slug
}

// Artifacts are the text files generated for one problem.
type Artifacts struct {
	Language string
	Readme   string
	Solution string
	Tests    string
	Notes    string
}
