// Package codeforces picks problems from the public Codeforces problemset API.
package codeforces

import (
	"autofeedr/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	Source             = "codeforces"
	DefaultBaseURL     = "https://codeforces.com/api"
	DefaultTimeout     = 30 * time.Second
	DefaultMinInterval = 2 * time.Second
	problemURLFormat   = "https://codeforces.com/problemset/problem/%d/%s"
)

var ErrorProvider = errors.New("codeforces request failed")

var difficultyRatings = map[string]model.RatingRange{
	"easy":   {Min: 800, Max: 1200},
	"medium": {Min: 1300, Max: 1700},
	"hard":   {Min: 1800, Max: 2300},
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	// MinInterval spaces consecutive API calls. Zero disables limiting.
	MinInterval time.Duration
}

type Provider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	pick    func(n int) int
}

func NewProvider(config Config) *Provider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if config.MinInterval > 0 {
		limit = rate.Every(config.MinInterval)
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		pick:    rand.IntN,
	}
}

type apiResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Result  struct {
		Problems []apiProblem `json:"problems"`
	} `json:"result"`
}

type apiProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    *int     `json:"rating"`
	Tags      []string `json:"tags"`
}

// Fetch picks a random problem matching filter whose ID is not in
// excludedIDs. An empty candidate set yields model.ErrorNotFound.
func (p *Provider) Fetch(ctx context.Context, filter model.ProblemFilter, excludedIDs []string) (model.Problem, error) {
	bounds, bounded := RatingBounds(filter)
	problems, err := p.problemset(ctx, filter.Tags)
	if err != nil {
		return model.Problem{}, err
	}

	excluded := make(map[string]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}
	candidates := make([]model.Problem, 0, len(problems))
	for _, item := range problems {
		if item.Rating == nil || item.ContestID == 0 || item.Index == "" {
			continue
		}
		if bounded && (*item.Rating < bounds.Min || *item.Rating > bounds.Max) {
			continue
		}
		problem := toProblem(item)
		if _, used := excluded[problem.ID()]; used {
			continue
		}
		candidates = append(candidates, problem)
	}

	log.WithFields(log.Fields{
		"fetched":    len(problems),
		"candidates": len(candidates),
		"tags":       filter.Tags,
	}).Debug("Filtered codeforces problemset")
	if len(candidates) == 0 {
		return model.Problem{}, errors.Wrapf(model.ErrorNotFound, "no codeforces problem for %s", describe(filter))
	}
	return candidates[p.pick(len(candidates))], nil
}

func (p *Provider) problemset(ctx context.Context, tags []string) ([]apiProblem, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "failed waiting for codeforces rate limit")
	}

	endpoint := p.baseURL + "/problemset.problems"
	if len(tags) > 0 {
		endpoint += "?" + url.Values{"tags": {strings.Join(tags, ";")}}.Encode()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed building codeforces request"), ErrorProvider)
	}
	request.Header.Set("Accept", "application/json")

	response, err := p.client.Do(request)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed calling codeforces"), ErrorProvider)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, errors.Mark(errors.Newf("codeforces responded with HTTP %d", response.StatusCode), ErrorProvider)
	}
	var payload apiResponse
	if err = json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed decoding codeforces response"), ErrorProvider)
	}
	if payload.Status != "OK" {
		return nil, errors.Mark(errors.Newf("codeforces status %s: %s", payload.Status, payload.Comment), ErrorProvider)
	}
	return payload.Result.Problems, nil
}

// RatingBounds resolves the inclusive rating interval of filter. An explicit
// rating range wins over the difficulty label; false means unbounded.
func RatingBounds(filter model.ProblemFilter) (model.RatingRange, bool) {
	if filter.RatingRange != nil {
		return *filter.RatingRange, true
	}
	bounds, ok := difficultyRatings[strings.ToLower(filter.Difficulty)]
	return bounds, ok
}

func toProblem(item apiProblem) model.Problem {
	name := item.Name
	if name == "" {
		name = fmt.Sprintf("CF %d%s", item.ContestID, item.Index)
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.Problem{
		Source:    Source,
		ContestID: item.ContestID,
		Index:     item.Index,
		Name:      name,
		Rating:    *item.Rating,
		Tags:      tags,
		URL:       fmt.Sprintf(problemURLFormat, item.ContestID, item.Index),
	}
}

func describe(filter model.ProblemFilter) string {
	level := filter.Difficulty
	if filter.RatingRange != nil {
		level = fmt.Sprintf("rating %d-%d", filter.RatingRange.Min, filter.RatingRange.Max)
	}
	if len(filter.Tags) > 0 {
		return fmt.Sprintf("%s with tags %s", level, strings.Join(filter.Tags, ";"))
	}
	return level
}
