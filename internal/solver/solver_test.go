package solver

import (
	"autofeedr/internal/model"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

var watermelon = model.Problem{
	Source:    "codeforces",
	ContestID: 4,
	Index:     "A",
	Name:      "Watermelon",
	Rating:    800,
	Tags:      []string{"brute force", "math"},
	URL:       "https://codeforces.com/problemset/problem/4/A",
}

func TestGeneratePython(t *testing.T) {
	artifacts, err := NewTemplateSolver().Generate(watermelon, "Python")
	require.NoError(t, err)

	assert.Equal(t, "python", artifacts.Language)
	assert.Contains(t, artifacts.Readme, "# Watermelon\n")
	assert.Contains(t, artifacts.Readme, "- Link: https://codeforces.com/problemset/problem/4/A")
	assert.Contains(t, artifacts.Readme, "- Rating: 800")
	assert.Contains(t, artifacts.Readme, "- Tags: brute force, math")
	assert.Contains(t, artifacts.Solution, "Problem: Watermelon")
	assert.Contains(t, artifacts.Solution, "sys.stdin.read()")
	assert.Contains(t, artifacts.Tests, "import solution")
	assert.Contains(t, artifacts.Tests, "@pytest.mark.skip")
	assert.Contains(t, artifacts.Notes, watermelon.URL)
}

func TestGenerateWithoutMetadata(t *testing.T) {
	problem := model.Problem{Source: "codeforces", ContestID: 7, Index: "B", Name: "Bare"}

	artifacts, err := NewTemplateSolver().Generate(problem, "python")
	require.NoError(t, err)
	assert.Contains(t, artifacts.Readme, "- Rating: N/A")
	assert.Contains(t, artifacts.Readme, "- Tags: N/A")
}

func TestGenerateUnsupportedLanguage(t *testing.T) {
	for _, language := range []string{"go", "cpp", ""} {
		_, err := NewTemplateSolver().Generate(watermelon, language)
		require.Error(t, err, language)
		assert.True(t, errors.Is(err, ErrorUnsupportedLanguage), language)
	}
}
