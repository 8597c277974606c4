// Package solver generates the baseline files committed for a problem.
package solver

import (
	"autofeedr/internal/model"
	"embed"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"strings"
	"text/template"
)

var ErrorUnsupportedLanguage = errors.New("unsupported language")

//go:embed templates
var templateFiles embed.FS

var functions = template.FuncMap{"join": strings.Join}

// languageTemplates holds the parsed artifact templates per supported language.
var languageTemplates = map[string]*template.Template{
	"python": template.Must(template.New("python").Funcs(functions).ParseFS(templateFiles, "templates/python/*.tmpl")),
}

type TemplateSolver struct{}

func NewTemplateSolver() *TemplateSolver {
	return &TemplateSolver{}
}

// Generate renders the README, solution, tests and notes for problem.
func (s *TemplateSolver) Generate(problem model.Problem, language string) (model.Artifacts, error) {
	normalized := strings.ToLower(strings.TrimSpace(language))
	templates, ok := languageTemplates[normalized]
	if !ok {
		return model.Artifacts{}, errors.Wrapf(ErrorUnsupportedLanguage, "no templates for %q", language)
	}
	log.WithFields(log.Fields{
		"problem":  problem.ID(),
		"language": normalized,
	}).Info("Generating baseline artifacts")

	artifacts := model.Artifacts{Language: normalized}
	targets := []struct {
		name   string
		output *string
	}{
		{"README.md.tmpl", &artifacts.Readme},
		{"solution.py.tmpl", &artifacts.Solution},
		{"test_solution.py.tmpl", &artifacts.Tests},
		{"notes.md.tmpl", &artifacts.Notes},
	}
	for _, target := range targets {
		var rendered strings.Builder
		if err := templates.ExecuteTemplate(&rendered, target.name, problem); err != nil {
			return model.Artifacts{}, errors.Wrapf(err, "failed rendering %s", target.name)
		}
		*target.output = rendered.String()
	}
	return artifacts, nil
}
