package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nishad/redbiom/internal/app"
	"github.com/nishad/redbiom/internal/fetcher"
	"github.com/nishad/redbiom/internal/loader"
	"github.com/nishad/redbiom/internal/model"
)

func queryParams(r *http.Request, key string) []string {
	return r.URL.Query()[key]
}

func queryBool(r *http.Request, key string) bool {
	return r.URL.Query().Get(key) == "true" || r.URL.Query().Get(key) == "1"
}

// handleListContexts mirrors summarize-contexts.
func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	contexts, err := s.app.Index.Contexts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, contexts)
}

// handleCreateContext mirrors create-context.
func (s *Server) handleCreateContext(w http.ResponseWriter, r *http.Request) {
	if !s.requireConfirmation(w, r) {
		return
	}
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return
	}
	if err := s.app.Index.CreateContext(r.Context(), body.Name, body.Description); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"context": body.Name})
}

// handleSearchFeatures mirrors search-features.
func (s *Server) handleSearchFeatures(w http.ResponseWriter, r *http.Request) {
	context_ := r.URL.Query().Get("context")
	if err := s.app.Index.RequireContext(r.Context(), context_); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	names, err := app.AxisSearch(r.Context(), s.app, context_, queryParams(r, "id"), model.AxisFeature, queryBool(r, "exact"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

// handleSearchSamples mirrors search-samples, resolving ambiguity the
// same way the CLI command does before searching.
func (s *Server) handleSearchSamples(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	context_ := r.URL.Query().Get("context")
	if err := s.app.Index.RequireContext(ctx, context_); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}

	res, err := s.app.SampleResolver(context_).Resolve(ctx, queryParams(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	ids := make([]string, 0, len(res.Resolved))
	for _, id := range res.Resolved {
		ids = append(ids, string(id))
	}
	for _, candidates := range res.Ambiguous {
		for _, c := range candidates {
			ids = append(ids, string(c))
		}
	}

	names, err := app.AxisSearch(ctx, s.app, context_, ids, model.AxisSample, queryBool(r, "exact"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"features":   names,
		"ambiguous":  res.Ambiguous,
		"unresolved": res.NotFound,
	})
}

// handleSearchMetadata mirrors search-metadata.
func (s *Server) handleSearchMetadata(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("query parameter %q is required", "q"))
		return
	}
	results, err := s.app.Query.MetadataFull(r.Context(), query, queryBool(r, "categories"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

type fetchRequest struct {
	Context         string   `json:"context"`
	IDs             []string `json:"ids"`
	Ambiguity       string   `json:"ambiguity"`
	Exact           bool     `json:"exact"`
	IncludeTaxonomy bool     `json:"include_taxonomy"`
	NormalizeRanks  []string `json:"normalize_ranks"`
}

type fetchResponse struct {
	SampleIDs  []string                        `json:"sample_ids"`
	FeatureIDs []string                        `json:"feature_ids"`
	Rows       []map[string]float64            `json:"rows"`
	Ambiguous  map[string][]model.RedbiomID    `json:"ambiguous,omitempty"`
}

func renderTable(table *fetcher.SparseTable, amb fetcher.AmbiguityMap) fetchResponse {
	rows := make([]map[string]float64, len(table.SampleIDs))
	for i := range table.SampleIDs {
		rows[i] = table.Row(i)
	}
	return fetchResponse{
		SampleIDs:  table.SampleIDs,
		FeatureIDs: table.FeatureIDs,
		Rows:       rows,
		Ambiguous:  amb,
	}
}

// handleFetchSamples mirrors fetch-samples.
func (s *Server) handleFetchSamples(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return
	}
	policy, err := ambiguityPolicyFromString(req.Ambiguity)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	table, amb, err := s.app.Fetcher.Fetch(r.Context(), req.Context, req.IDs, fetcher.FetchOptions{
		AmbiguityPolicy:   policy,
		IncludeTaxonomy:   req.IncludeTaxonomy,
		NormalizeTaxonomy: req.NormalizeRanks,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderTable(table, amb))
}

// handleFetchFeatures mirrors fetch-features.
func (s *Server) handleFetchFeatures(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return
	}

	table, amb, err := s.app.Fetcher.Fetch(r.Context(), req.Context, req.IDs, fetcher.FetchOptions{
		ByFeature: true,
		Exact:     req.Exact,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderTable(table, amb))
}

func ambiguityPolicyFromString(s string) (fetcher.AmbiguityPolicy, error) {
	switch s {
	case "", "none":
		return fetcher.PolicyNone, nil
	case "merge":
		return fetcher.PolicyMerge, nil
	case "most-reads":
		return fetcher.PolicyMostReads, nil
	default:
		return "", fmt.Errorf("unknown ambiguity policy %q (want none|merge|most-reads)", s)
	}
}

// handleSummarizeContexts mirrors summarize-contexts.
func (s *Server) handleSummarizeContexts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contexts, err := s.app.Index.Contexts(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	type row struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Samples     int64  `json:"samples"`
		Features    int64  `json:"features"`
	}
	out := make([]row, 0, len(contexts))
	for _, c := range contexts {
		samples, err := s.app.Index.Size(ctx, c.Name, model.AxisSample)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		features, err := s.app.Index.Size(ctx, c.Name, model.AxisFeature)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, row{Name: c.Name, Description: c.Description, Samples: samples, Features: features})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleSummarizeMetadata mirrors summarize-metadata.
func (s *Server) handleSummarizeMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if column := r.URL.Query().Get("column"); column != "" {
		values, err := s.app.Metadata.ColumnValues(ctx, column)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		counts := make(map[string]int)
		for _, v := range values {
			counts[v]++
		}
		s.writeJSON(w, http.StatusOK, counts)
		return
	}

	counts, err := s.app.Metadata.SampleCountsPerColumn(ctx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

// handleSummarizeTaxonomy mirrors summarize-taxonomy.
func (s *Server) handleSummarizeTaxonomy(w http.ResponseWriter, r *http.Request) {
	context_ := r.URL.Query().Get("context")
	taxon := r.URL.Query().Get("taxon")
	if taxon == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("query parameter %q is required", "taxon"))
		return
	}
	descendents, err := s.app.Contexts.TaxonDescendents(r.Context(), context_, taxon)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, descendents)
}

// handleSelectSamplesFromMetadata mirrors select-samples-from-metadata.
func (s *Server) handleSelectSamplesFromMetadata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query   string   `json:"query"`
		Samples []string `json:"samples"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return
	}

	matched, err := s.app.Query.MetadataFull(r.Context(), req.Query, false)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	matchedSet := make(map[string]bool, len(matched))
	for _, m := range matched {
		matchedSet[m] = true
	}

	var selected []string
	for _, id := range req.Samples {
		if matchedSet[id] {
			selected = append(selected, id)
		}
	}
	s.writeJSON(w, http.StatusOK, selected)
}

// handleLoadSampleData mirrors load-sample-data; mutating, gated by
// X-Redbiom-Confirm.
func (s *Server) handleLoadSampleData(w http.ResponseWriter, r *http.Request) {
	if !s.requireConfirmation(w, r) {
		return
	}
	var req struct {
		Context string                         `json:"context"`
		Counts  map[string]map[string]float64 `json:"counts"`
		Tag     string                         `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return
	}

	loaded, err := s.app.Loader.LoadSampleData(r.Context(), req.Context, loader.SparseTable{Counts: req.Counts}, model.Tag(req.Tag))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"loaded": loaded})
}

// handleLoadSampleMetadata mirrors load-sample-metadata; mutating,
// gated by X-Redbiom-Confirm.
func (s *Server) handleLoadSampleMetadata(w http.ResponseWriter, r *http.Request) {
	if !s.requireConfirmation(w, r) {
		return
	}
	var req struct {
		Rows       map[string]map[string]string `json:"rows"`
		Tag        string                        `json:"tag"`
		FullSearch bool                          `json:"full_search"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return
	}

	ctx := r.Context()
	loaded, err := s.app.Loader.LoadSampleMetadata(ctx, req.Rows, model.Tag(req.Tag))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.FullSearch {
		if err := s.app.Loader.LoadSampleMetadataFullSearch(ctx, req.Rows, model.Tag(req.Tag)); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"loaded": loaded})
}
