package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arvelius/recoengine/internal/kernel"
	"github.com/arvelius/recoengine/internal/recoerr"
	"github.com/arvelius/recoengine/pkg/cache"
	"github.com/arvelius/recoengine/pkg/dataset"
	"github.com/arvelius/recoengine/pkg/engine"
	"github.com/arvelius/recoengine/pkg/observability"
	"github.com/arvelius/recoengine/pkg/store"
)

// CacheConfig controls the per-dataset prediction result cache.
type CacheConfig struct {
	Enabled  bool
	Capacity int
	TTL      time.Duration
}

// Handler wraps the dataset manager and serves predictions in-process over
// HTTP. Each dataset owns its own Store, so a fresh Engine is built per
// request over the Store named in the request path rather than sharing one
// engine across every dataset.
type Handler struct {
	manager  *dataset.Manager
	logger   engine.Logger
	metrics  *observability.Metrics
	scoreMin float64
	scoreMax float64

	cacheCfg CacheConfig
	cacheMu  sync.Mutex
	caches   map[string]*cache.LRUCache
}

// NewHandler creates a new REST API handler. scoreMin/scoreMax bound the
// rating scale accepted by datasets created through this handler. logger and
// metrics may both be nil.
func NewHandler(manager *dataset.Manager, logger engine.Logger, metrics *observability.Metrics, cacheCfg CacheConfig, scoreMin, scoreMax float64) *Handler {
	return &Handler{
		manager:  manager,
		logger:   logger,
		metrics:  metrics,
		scoreMin: scoreMin,
		scoreMax: scoreMax,
		cacheCfg: cacheCfg,
		caches:   make(map[string]*cache.LRUCache),
	}
}

// engineFor builds an Engine scoped to the given dataset's own Store.
func (h *Handler) engineFor(ds *dataset.Dataset) *engine.Engine[string, string] {
	return engine.New(ds.Store).WithLogger(h.logger)
}

// cacheFor lazily creates the named dataset's prediction cache.
func (h *Handler) cacheFor(name string) *cache.LRUCache {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()

	if c, ok := h.caches[name]; ok {
		return c
	}
	c := cache.NewLRUCache(h.cacheCfg.Capacity, h.cacheCfg.TTL)
	h.caches[name] = c
	if h.metrics != nil {
		h.metrics.UpdateCacheSize(c.Size())
	}
	return c
}

// cachedPrediction serves score from the named dataset's cache under key if
// present, otherwise calls compute, caches the result, and returns it.
func (h *Handler) cachedPrediction(datasetName, key string, compute func() (float64, error)) (float64, error) {
	if !h.cacheCfg.Enabled {
		return compute()
	}

	c := h.cacheFor(datasetName)
	if score, ok := c.Get(key); ok {
		if h.metrics != nil {
			h.metrics.RecordCacheHit()
		}
		return score, nil
	}
	if h.metrics != nil {
		h.metrics.RecordCacheMiss()
	}

	score, err := compute()
	if err != nil {
		return 0, err
	}
	c.Put(key, score)
	if h.metrics != nil {
		h.metrics.UpdateCacheSize(c.Size())
	}
	return score, nil
}

// HealthCheck handles GET /v1/health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// ListDatasets handles GET /v1/datasets.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	datasets := h.manager.ListDatasets()
	out := make([]map[string]any, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, map[string]any{
			"id":        ds.ID,
			"name":      ds.Name,
			"active":    ds.IsActive,
			"usage":     ds.Usage,
			"quota":     ds.Quota,
			"overQuota": ds.IsOverQuota(),
		})
	}
	writeJSON(w, out, http.StatusOK)
}

type createDatasetRequest struct {
	Name  string        `json:"name"`
	Quota *dataset.Quota `json:"quota,omitempty"`
}

// CreateDataset handles POST /v1/datasets.
func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "Dataset name is required", http.StatusBadRequest)
		return
	}

	quota := dataset.DefaultQuota()
	if req.Quota != nil {
		quota = *req.Quota
	}

	ds, err := h.manager.CreateDataset(req.Name, store.NewMemoryStore[string, string](h.scoreMin, h.scoreMax, nil, nil), quota)
	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, map[string]any{"id": ds.ID, "name": ds.Name}, http.StatusCreated)
}

// DeleteDataset handles DELETE /v1/datasets/{name}.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")
	if name == "" {
		writeError(w, "Dataset name is required", http.StatusBadRequest)
		return
	}

	if err := h.manager.DeleteDataset(name); err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

type ratingRequest struct {
	User  string  `json:"user"`
	Item  string  `json:"item"`
	Score float64 `json:"score"`
}

// InsertRating handles POST /v1/datasets/{name}/ratings.
func (h *Handler) InsertRating(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ds, name, ok := h.datasetFromRatingsPath(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := ds.CheckRatingQuota(1); err != nil {
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	newUser, newItem, err := h.ensureEntities(r.Context(), ds, req.User, req.Item)
	if err != nil {
		writeDomainError(w, err, fmt.Sprintf("register user/item in dataset %q", name))
		return
	}

	if err := ds.Store.InsertRating(r.Context(), req.User, req.Item, req.Score); err != nil {
		writeDomainError(w, err, fmt.Sprintf("insert rating into dataset %q", name))
		return
	}
	ds.IncrementRatingCount(1)
	if newUser {
		ds.IncrementUserCount(1)
	}
	if newItem {
		ds.IncrementItemCount(1)
	}

	writeJSON(w, map[string]string{"status": "created"}, http.StatusCreated)
}

// UpdateRating handles PUT /v1/datasets/{name}/ratings.
func (h *Handler) UpdateRating(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ds, name, ok := h.datasetFromRatingsPath(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := ds.Store.UpdateRating(r.Context(), req.User, req.Item, req.Score); err != nil {
		writeDomainError(w, err, fmt.Sprintf("update rating in dataset %q", name))
		return
	}

	writeJSON(w, map[string]string{"status": "updated"}, http.StatusOK)
}

// RemoveRating handles DELETE /v1/datasets/{name}/ratings.
func (h *Handler) RemoveRating(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ds, name, ok := h.datasetFromRatingsPath(w, r)
	if !ok {
		return
	}

	user := r.URL.Query().Get("user")
	item := r.URL.Query().Get("item")
	if user == "" || item == "" {
		writeError(w, "user and item query parameters are required", http.StatusBadRequest)
		return
	}

	if err := ds.Store.RemoveRating(r.Context(), user, item); err != nil {
		writeDomainError(w, err, fmt.Sprintf("remove rating from dataset %q", name))
		return
	}
	ds.DecrementRatingCount(1)

	writeJSON(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

// PredictUserBased handles GET /v1/datasets/{name}/predict/user-based.
func (h *Handler) PredictUserBased(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ds, user, item, ok := h.predictionParams(w, r, "/v1/datasets/", "/predict/user-based")
	if !ok {
		return
	}
	if err := ds.CheckRateLimit(); err != nil {
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	k := ParseIntQuery(r, "k", 10)
	p := parseFloatQuery(r, "p", 2)
	method := parseMethodQuery(r, "method", kernel.PearsonCorrelation)
	chunkSize := ParseIntQuery(r, "chunk_size", 0)

	start := time.Now()
	key := cache.GenerateUserBasedKey(int(method), k, user, item)
	score, err := h.cachedPrediction(ds.Name, key, func() (float64, error) {
		return h.engineFor(ds).PredictUserBased(r.Context(), k, user, item, method, p, chunkSize)
	})
	h.recordPrediction("user-based", err, time.Since(start))
	if err != nil {
		writeDomainError(w, err, "predict user-based rating")
		return
	}

	writeJSON(w, map[string]float64{"score": score}, http.StatusOK)
}

// PredictItemBased handles GET /v1/datasets/{name}/predict/item-based.
func (h *Handler) PredictItemBased(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ds, user, item, ok := h.predictionParams(w, r, "/v1/datasets/", "/predict/item-based")
	if !ok {
		return
	}
	if err := ds.CheckRateLimit(); err != nil {
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	chunkSize := ParseIntQuery(r, "chunk_size", 0)

	start := time.Now()
	key := cache.GenerateItemBasedKey(user, item)
	score, err := h.cachedPrediction(ds.Name, key, func() (float64, error) {
		return h.engineFor(ds).PredictItemBased(r.Context(), user, item, chunkSize)
	})
	h.recordPrediction("item-based", err, time.Since(start))
	if err != nil {
		writeDomainError(w, err, "predict item-based rating")
		return
	}

	writeJSON(w, map[string]float64{"score": score}, http.StatusOK)
}

// PredictSlopeOne handles GET /v1/datasets/{name}/predict/slope-one.
func (h *Handler) PredictSlopeOne(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ds, user, item, ok := h.predictionParams(w, r, "/v1/datasets/", "/predict/slope-one")
	if !ok {
		return
	}
	if err := ds.CheckRateLimit(); err != nil {
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	chunkSize := ParseIntQuery(r, "chunk_size", 20)

	start := time.Now()
	key := cache.GenerateSlopeOneKey(user, item)
	score, err := h.cachedPrediction(ds.Name, key, func() (float64, error) {
		return h.engineFor(ds).PredictSlopeOne(r.Context(), user, item, chunkSize)
	})
	h.recordPrediction("slope-one", err, time.Since(start))
	if err != nil {
		writeDomainError(w, err, "predict slope-one rating")
		return
	}

	writeJSON(w, map[string]float64{"score": score}, http.StatusOK)
}

// recordPrediction reports prediction outcome/latency and, on domain-error
// failures, the failing error kind, to metrics. No-ops if metrics is nil.
func (h *Handler) recordPrediction(strategy string, err error, duration time.Duration) {
	if h.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	h.metrics.RecordPrediction(strategy, status, duration)

	if err == nil {
		return
	}
	var domainErr *recoerr.Error
	if errors.As(err, &domainErr) {
		h.metrics.RecordPredictionError(strategy, domainErr.Kind.String())
	}
}

// ensureEntities upserts the user/item referenced by a rating if they are
// not already registered in ds, reporting which (if either) were newly
// created so callers can update dataset usage counters.
func (h *Handler) ensureEntities(ctx context.Context, ds *dataset.Dataset, user, item string) (newUser, newItem bool, err error) {
	if _, err := ds.Store.UsersBy(ctx, store.EntityQuery[string]{Kind: store.ByID, IDs: []string{user}}); err != nil {
		if insertErr := ds.Store.InsertUser(ctx, store.Entity[string]{ID: user, Name: user}); insertErr != nil {
			return false, false, insertErr
		}
		newUser = true
	}
	if _, err := ds.Store.ItemsBy(ctx, store.EntityQuery[string]{Kind: store.ByID, IDs: []string{item}}); err != nil {
		if insertErr := ds.Store.InsertItem(ctx, store.Entity[string]{ID: item, Name: item}); insertErr != nil {
			return newUser, false, insertErr
		}
		newItem = true
	}
	return newUser, newItem, nil
}

// datasetFromRatingsPath extracts the dataset named in a
// /v1/datasets/{name}/ratings request path.
func (h *Handler) datasetFromRatingsPath(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, string, bool) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")
	name := strings.TrimSuffix(path, "/ratings")
	if name == "" || name == path {
		writeError(w, "Invalid URL format, expected /v1/datasets/{name}/ratings", http.StatusBadRequest)
		return nil, "", false
	}

	ds, err := h.manager.GetDataset(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return nil, "", false
	}
	return ds, name, true
}

// predictionParams extracts the dataset name from a prefix/suffix-delimited
// path and the user/item query parameters shared by every prediction endpoint.
func (h *Handler) predictionParams(w http.ResponseWriter, r *http.Request, prefix, suffix string) (*dataset.Dataset, string, string, bool) {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	name := strings.TrimSuffix(path, suffix)
	if name == "" || name == path {
		writeError(w, fmt.Sprintf("Invalid URL format, expected %s{name}%s", prefix, suffix), http.StatusBadRequest)
		return nil, "", "", false
	}

	ds, err := h.manager.GetDataset(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return nil, "", "", false
	}

	user := r.URL.Query().Get("user")
	item := r.URL.Query().Get("item")
	if user == "" || item == "" {
		writeError(w, "user and item query parameters are required", http.StatusBadRequest)
		return nil, "", "", false
	}

	return ds, user, item, true
}

// ServeDocs serves the OpenAPI/Swagger documentation.
func ServeDocs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	content, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		writeError(w, "OpenAPI spec not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// ServeSwaggerUI serves the Swagger UI HTML page.
func ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	html := `<!DOCTYPE html>
<html>
<head>
    <title>Recommendation Engine API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "/docs/openapi.yaml",
                dom_id: '#swagger-ui',
                presets: [
                    SwaggerUIBundle.presets.apis,
                    SwaggerUIBundle.SwaggerUIStandalonePreset
                ],
                layout: "BaseLayout"
            });
        };
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

// writeDomainError maps a *recoerr.Error to an HTTP status code; any other
// error type is reported as 500.
func writeDomainError(w http.ResponseWriter, err error, context string) {
	var domainErr *recoerr.Error
	if !errors.As(err, &domainErr) {
		writeError(w, fmt.Sprintf("%s: %v", context, err), http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Kind {
	case recoerr.NotFoundByID, recoerr.NotFoundByName, recoerr.NotFoundByCustom:
		status = http.StatusNotFound
	case recoerr.EmptyKNearestNeighbors, recoerr.EmptyRatings, recoerr.NoMatchingRatings,
		recoerr.DivisionByZero, recoerr.IndeterminateForm, recoerr.IndexOutOfBound:
		status = http.StatusUnprocessableEntity
	}

	writeError(w, fmt.Sprintf("%s: %v", context, domainErr), status)
}

// parseFloatQuery parses a float64 query parameter.
func parseFloatQuery(r *http.Request, key string, defaultValue float64) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseMethodQuery parses a similarity/distance kernel method by name.
func parseMethodQuery(r *http.Request, key string, defaultValue kernel.Method) kernel.Method {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "manhattan":
		return kernel.Manhattan
	case "euclidean":
		return kernel.Euclidean
	case "minkowski":
		return kernel.Minkowski
	case "jaccard_index":
		return kernel.JaccardIndex
	case "jaccard_distance":
		return kernel.JaccardDistance
	case "cosine":
		return kernel.CosineSimilarity
	case "pearson":
		return kernel.PearsonCorrelation
	case "pearson_approximation":
		return kernel.PearsonApproximation
	default:
		return defaultValue
	}
}

// ParseIntQuery parses an integer query parameter.
func ParseIntQuery(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}
