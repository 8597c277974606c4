package data

import (
	"encoding/json"
	"net/http"
	"sync"
)

type CatalogProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    int      `json:"rating,omitempty"`
	Tags      []string `json:"tags"`
}

var EasyProblems = []CatalogProblem{
	{ContestID: 4, Index: "A", Name: "Watermelon", Rating: 800, Tags: []string{"brute force", "math"}},
	{ContestID: 71, Index: "A", Name: "Way Too Long Words", Rating: 800, Tags: []string{"strings"}},
}

var OtherProblems = []CatalogProblem{
	{ContestID: 1, Index: "A", Name: "Theatre Square", Rating: 1000, Tags: []string{"math"}},
	{ContestID: 1500, Index: "C", Name: "Middle Ground", Rating: 1500, Tags: []string{"dp"}},
	{ContestID: 2000, Index: "B", Name: "Unrated Newcomer", Tags: []string{"greedy"}},
}

// Catalog is a fake problemset endpoint that counts the requests it served.
type Catalog struct {
	problems []CatalogProblem
	requests int
	lock     *sync.Mutex
}

func NewCatalog(problems ...[]CatalogProblem) *Catalog {
	catalog := Catalog{lock: &sync.Mutex{}}
	for _, group := range problems {
		catalog.problems = append(catalog.problems, group...)
	}
	return &catalog
}

func (c *Catalog) Requests() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.requests
}

func (c *Catalog) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	c.lock.Lock()
	c.requests++
	c.lock.Unlock()
	if req.URL.Path != "/problemset.problems" {
		http.NotFound(w, req)
		return
	}
	payload := map[string]any{
		"status": "OK",
		"result": map[string]any{"problems": c.problems, "problemStatistics": []any{}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
