package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cbre360/js-sdk/internal/model"
)

// APIVersion is the value of the required X-Kinvey-Api-Version header
// (spec 6).
const APIVersion = "4"

// Authorizer adds credentials to outgoing requests and serializes 401-driven
// token refresh. Implemented by internal/auth.Provider; kept as a narrow
// interface here to avoid network depending on auth's concrete type.
type Authorizer interface {
	// Authorize sets the Authorization header (and any other auth-related
	// headers) on req before it is sent.
	Authorize(ctx context.Context, req *http.Request) error
	// Reauthorize is invoked after a 401 response. It performs (or awaits
	// a concurrent) token refresh and, on success, re-applies credentials
	// to req for exactly one retry. retry=false means the caller already
	// consumed its one retry, or refresh failed outright (err is set).
	Reauthorize(ctx context.Context, req *http.Request) (retry bool, err error)
}

// HTTPRepository is the production Repository implementation: JSON over
// HTTPS to the wire protocol of spec 6, grounded on pkg/recall/sync.go's
// authenticated sendRequest helper.
type HTTPRepository struct {
	baseURL    string // e.g. https://baas.kinvey.com/appdata/<appKey>
	httpClient *http.Client
	auth       Authorizer
	logger     *slog.Logger
}

// NewHTTPRepository constructs an HTTPRepository. baseURL must already
// include the appKey segment, e.g. "https://baas.kinvey.com/appdata/myapp".
func NewHTTPRepository(baseURL string, httpClient *http.Client, auth Authorizer, logger *slog.Logger) *HTTPRepository {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPRepository{baseURL: baseURL, httpClient: httpClient, auth: auth, logger: logger}
}

func (r *HTTPRepository) collectionURL(collection string, suffix string) string {
	u := r.baseURL + "/" + collection
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

func (r *HTTPRepository) do(ctx context.Context, method, rawURL string, body any) ([]byte, map[string]string, error) {
	start := time.Now()
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, model.WrapError(model.KindKinvey, "encode request body", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, nil, model.WrapError(model.KindKinvey, "build request", err)
	}
	setCommonHeaders(req)
	if r.auth != nil {
		if err := r.auth.Authorize(ctx, req); err != nil {
			return nil, nil, err
		}
	}

	data, headers, retryErr := r.send(ctx, req)
	if retryErr != nil && model.IsKind(retryErr, model.KindInvalidCredentials) && r.auth != nil {
		retry, rerr := r.auth.Reauthorize(ctx, req)
		if rerr != nil {
			return nil, nil, rerr
		}
		if retry {
			data, headers, retryErr = r.send(ctx, req)
		}
	}

	r.logger.Debug("network request",
		"component", "network.HTTPRepository",
		"method", method,
		"url", rawURL,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", errString(retryErr),
	)
	return data, headers, retryErr
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func setCommonHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json; charset=utf-8")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Kinvey-Api-Version", APIVersion)
}

func (r *HTTPRepository) send(ctx context.Context, req *http.Request) ([]byte, map[string]string, error) {
	if req.GetBody != nil {
		// Rewind body for the (rare) Reauthorize-triggered retry.
		b, err := req.GetBody()
		if err == nil {
			req.Body = b
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, model.WrapError(model.KindTimeout, "request timed out", err)
		}
		return nil, nil, model.WrapError(model.KindNoResponse, "transport error", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, model.WrapError(model.KindNoResponse, "read response body", err)
	}

	headers := map[string]string{}
	if v := resp.Header.Get(RequestStartHeader); v != "" {
		headers[RequestStartHeader] = v
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, headers, nil
	}
	return data, headers, MapHTTPError(resp.StatusCode, data)
}

// Create issues one POST per entity (the backend's batch create endpoint is
// out of scope for this facade) and returns the server's response entities.
func (r *HTTPRepository) Create(ctx context.Context, collection string, entities []model.Entity) ([]model.Entity, error) {
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		data, _, err := r.do(ctx, http.MethodPost, r.collectionURL(collection, ""), e)
		if err != nil {
			return nil, err
		}
		var created model.Entity
		if err := json.Unmarshal(data, &created); err != nil {
			return nil, model.WrapError(model.KindKinvey, "decode create response", err)
		}
		out = append(out, created)
	}
	return out, nil
}

// Update issues one PUT per entity.
func (r *HTTPRepository) Update(ctx context.Context, collection string, entities []model.Entity) ([]model.Entity, error) {
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		data, _, err := r.do(ctx, http.MethodPut, r.collectionURL(collection, e.ID()), e)
		if err != nil {
			return nil, err
		}
		var updated model.Entity
		if err := json.Unmarshal(data, &updated); err != nil {
			return nil, model.WrapError(model.KindKinvey, "decode update response", err)
		}
		out = append(out, updated)
	}
	return out, nil
}

// Read issues GET /appdata/<appKey>/<collection>?query=...
func (r *HTTPRepository) Read(ctx context.Context, collection string, q *model.Query, opts ReadOptions) (*Response, error) {
	u := r.collectionURL(collection, "") + "?" + EncodeQuery(q).Encode()
	data, headers, err := r.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var entities []model.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, model.WrapError(model.KindKinvey, "decode read response", err)
	}
	return &Response{Data: entities, Headers: headers}, nil
}

// ReadByID issues GET /appdata/<appKey>/<collection>/<id>.
func (r *HTTPRepository) ReadByID(ctx context.Context, collection, id string) (model.Entity, error) {
	data, _, err := r.do(ctx, http.MethodGet, r.collectionURL(collection, id), nil)
	if err != nil {
		return nil, err
	}
	var e model.Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, model.WrapError(model.KindKinvey, "decode readById response", err)
	}
	return e, nil
}

// Count issues GET /appdata/<appKey>/<collection>/_count?query=...
func (r *HTTPRepository) Count(ctx context.Context, collection string, q *model.Query, opts ReadOptions) (int, map[string]string, error) {
	u := r.collectionURL(collection, "_count") + "?" + EncodeQuery(q).Encode()
	data, headers, err := r.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, nil, model.WrapError(model.KindKinvey, "decode count response", err)
	}
	return body.Count, headers, nil
}

// DeleteByID issues DELETE /appdata/<appKey>/<collection>/<id>.
func (r *HTTPRepository) DeleteByID(ctx context.Context, collection, id string) error {
	_, _, err := r.do(ctx, http.MethodDelete, r.collectionURL(collection, id), nil)
	return err
}

// Group issues POST /appdata/<appKey>/<collection>/_group.
func (r *HTTPRepository) Group(ctx context.Context, collection string, agg *model.Aggregation) ([]map[string]any, error) {
	data, _, err := r.do(ctx, http.MethodPost, r.collectionURL(collection, "_group"), agg)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, model.WrapError(model.KindKinvey, "decode group response", err)
	}
	return rows, nil
}

// DeltaSet issues GET /appdata/<appKey>/<collection>/_deltaset?since=...
func (r *HTTPRepository) DeltaSet(ctx context.Context, collection string, since string, q *model.Query) (*DeltaSetResult, error) {
	values := EncodeQuery(q)
	values.Set("since", since)
	u := r.collectionURL(collection, "_deltaset") + "?" + values.Encode()
	data, headers, err := r.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Changed []model.Entity `json:"changed"`
		Deleted []struct {
			ID string `json:"_id"`
		} `json:"deleted"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, model.WrapError(model.KindKinvey, "decode deltaset response", err)
	}
	deleted := make([]string, 0, len(body.Deleted))
	for _, d := range body.Deleted {
		deleted = append(deleted, d.ID)
	}
	return &DeltaSetResult{Changed: body.Changed, Deleted: deleted, Headers: headers}, nil
}

// EncodeQuery renders q as the wire query-string parameters of spec 6:
// query=<json(filter)>&sort=<json(sort)>&fields=<csv>&skip=<n>&limit=<n>.
func EncodeQuery(q *model.Query) url.Values {
	values := url.Values{}
	if q == nil {
		return values
	}
	if q.Filter != nil {
		if data, err := json.Marshal(filterToMongoLike(q.Filter)); err == nil {
			values.Set("query", string(data))
		}
	}
	if len(q.Sort) > 0 {
		sortMap := make(map[string]int, len(q.Sort))
		for _, s := range q.Sort {
			sortMap[s.Field] = int(s.Direction)
		}
		if data, err := json.Marshal(sortMap); err == nil {
			values.Set("sort", string(data))
		}
	}
	if len(q.Fields) > 0 {
		csv := ""
		for i, f := range q.Fields {
			if i > 0 {
				csv += ","
			}
			csv += f
		}
		values.Set("fields", csv)
	}
	if q.Skip > 0 {
		values.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

// filterToMongoLike renders the filter tree as the Mongo-style query object
// the backend expects on the wire (distinct from the internal canonical
// form used for CachedQuery keys).
func filterToMongoLike(f *model.Filter) map[string]any {
	switch f.Op {
	case model.OpAnd:
		return map[string]any{"$and": childList(f.Children)}
	case model.OpOr:
		return map[string]any{"$or": childList(f.Children)}
	case model.OpNot:
		if len(f.Children) == 0 {
			return map[string]any{}
		}
		return map[string]any{"$not": filterToMongoLike(f.Children[0])}
	case model.OpEquals:
		return map[string]any{f.Field: f.Value}
	default:
		return map[string]any{f.Field: map[string]any{string(f.Op): f.Value}}
	}
}

func childList(children []*model.Filter) []map[string]any {
	out := make([]map[string]any, 0, len(children))
	for _, c := range children {
		out = append(out, filterToMongoLike(c))
	}
	return out
}

// MapHTTPError maps a non-2xx HTTP response to a model.StoreError per
// spec 6/7's error response mapping. It understands both the backend's
// native {error, description} shape and an RFC 7807 Problem Details body
// (type/title/status/detail), the latter accepted as a supplemented
// alternate shape.
func MapHTTPError(status int, body []byte) error {
	var native struct {
		Error       string `json:"error"`
		Description string `json:"description"`
	}
	_ = json.Unmarshal(body, &native)

	if native.Error == "" {
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &problem); err == nil && problem.Title != "" {
			native.Error = problem.Title
			native.Description = problem.Detail
		}
	}

	if kind, ok := namedErrorKind(native.Error); ok {
		return model.NewError(kind, describeOr(native.Description, native.Error))
	}

	switch {
	case status >= 500:
		return model.NewError(model.KindServerError, fmt.Sprintf("server error (status %d)", status))
	case status == 401:
		return model.NewError(model.KindInvalidCredentials, "unauthorized")
	case status == 404:
		return model.NewError(model.KindNotFound, "not found")
	default:
		return model.NewError(model.KindKinvey, fmt.Sprintf("request failed (status %d): %s", status, describeOr(native.Description, string(body))))
	}
}

func describeOr(description, fallback string) string {
	if description != "" {
		return description
	}
	return fallback
}

func namedErrorKind(name string) (model.ErrorKind, bool) {
	switch name {
	case "InvalidCredentials":
		return model.KindInvalidCredentials, true
	case "InvalidGrant":
		return model.KindInvalidGrant, true
	case "KinveyInternalErrorRetry":
		return model.KindServerError, true
	case "NotFound":
		return model.KindNotFound, true
	case "MissingConfiguration":
		return model.KindMissingConfiguration, true
	case "FeatureUnavailable":
		return model.KindInvalidCachedQuery, true
	default:
		return "", false
	}
}
