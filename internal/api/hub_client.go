package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"llmperf/internal/logger"
)

const (
	DefaultEndpoint       = "https://huggingface.co"
	DefaultDatasetsServer = "https://datasets-server.huggingface.co"
)

var (
	// ErrRepoNotFound is returned when a dataset repository does not exist or
	// is not visible with the configured token.
	ErrRepoNotFound = errors.New("repository not found")
	// ErrFileNotFound is returned when a file is missing from an existing repository.
	ErrFileNotFound = errors.New("file not found")
)

// StatusError reports an unexpected HTTP status from the hub.
type StatusError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
}

// Options configures a hub client. Zero values select the public endpoints.
type Options struct {
	Endpoint       string
	DatasetsServer string
	Token          string
	HTTPClient     *http.Client
	Logger         *logger.Logger
}

// Client talks to the dataset and model endpoints of the Hugging Face hub.
type Client struct {
	endpoint       string
	datasetsServer string
	token          string
	http           *http.Client
	logger         *logger.Logger
}

// NewClient creates a hub client.
func NewClient(opts Options) *Client {
	c := &Client{
		endpoint:       strings.TrimRight(opts.Endpoint, "/"),
		datasetsServer: strings.TrimRight(opts.DatasetsServer, "/"),
		token:          opts.Token,
		http:           opts.HTTPClient,
		logger:         opts.Logger,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.datasetsServer == "" {
		c.datasetsServer = DefaultDatasetsServer
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 5 * time.Minute}
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	return c
}

// Endpoint returns the hub base URL.
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", "llm-perf/1.0")
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.logger.Debug("🔌 %s %s", req.Method, req.URL.String())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Op:         op,
		URL:        resp.Request.URL.Redacted(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func escapeRepo(repo string) string {
	parts := strings.Split(repo, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// RepoExists reports whether a dataset repository exists.
func (c *Client) RepoExists(ctx context.Context, repo string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint+"/api/datasets/"+escapeRepo(repo), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound, http.StatusUnauthorized:
		return false, nil
	default:
		return false, statusError("repo info", resp)
	}
}

type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

var nextLink = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// ListFiles returns every file path in the main revision of a dataset
// repository, following pagination.
func (c *Client) ListFiles(ctx context.Context, repo string) ([]string, error) {
	next := c.endpoint + "/api/datasets/" + escapeRepo(repo) + "/tree/main?recursive=true"
	var files []string

	for next != "" {
		req, err := c.newRequest(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return nil, fmt.Errorf("list %s: %w", repo, ErrRepoNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			err := statusError("list tree", resp)
			resp.Body.Close()
			return nil, err
		}

		var entries []treeEntry
		err = json.NewDecoder(resp.Body).Decode(&entries)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode tree of %s: %w", repo, err)
		}
		for _, e := range entries {
			if e.Type == "file" {
				files = append(files, e.Path)
			}
		}

		next = ""
		if m := nextLink.FindStringSubmatch(resp.Header.Get("Link")); m != nil {
			next = m[1]
		}
	}
	return files, nil
}

// Download fetches one file from the main revision of a dataset repository.
func (c *Client) Download(ctx context.Context, repo, path string) ([]byte, error) {
	target := c.endpoint + "/datasets/" + escapeRepo(repo) + "/resolve/main/" + escapeRepo(path)
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("download %s/%s: %w", repo, path, ErrFileNotFound)
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("download %s/%s: %w", repo, path, ErrRepoNotFound)
	default:
		return nil, statusError("download", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", repo, path, err)
	}
	return data, nil
}

// CreateRepo creates a public dataset repository. An existing repository is not an error.
func (c *Client) CreateRepo(ctx context.Context, repo string) error {
	org, name := "", repo
	if i := strings.Index(repo, "/"); i >= 0 {
		org, name = repo[:i], repo[i+1:]
	}
	payload := map[string]any{
		"type":    "dataset",
		"name":    name,
		"private": false,
	}
	if org != "" {
		payload["organization"] = org
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode create request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint+"/api/repos/create", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusConflict:
		return nil
	default:
		return statusError("create repo", resp)
	}
}

type commitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary string `json:"summary"`
}

type commitFile struct {
	Content  string `json:"content"`
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
}

// UploadFile commits a single file to the main revision of a dataset repository.
func (c *Client) UploadFile(ctx context.Context, repo, path string, content []byte, summary string) error {
	if summary == "" {
		summary = "Upload " + path
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(commitLine{Key: "header", Value: commitHeader{Summary: summary}}); err != nil {
		return fmt.Errorf("failed to encode commit header: %w", err)
	}
	file := commitFile{Content: base64.StdEncoding.EncodeToString(content), Path: path, Encoding: "base64"}
	if err := enc.Encode(commitLine{Key: "file", Value: file}); err != nil {
		return fmt.Errorf("failed to encode commit file: %w", err)
	}

	target := c.endpoint + "/api/datasets/" + escapeRepo(repo) + "/commit/main"
	req, err := c.newRequest(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		c.logger.Debug("📤 Uploaded %s to %s", path, repo)
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("upload %s to %s: %w", path, repo, ErrRepoNotFound)
	default:
		return statusError("commit", resp)
	}
}

// ModelInfo is the subset of the hub model listing we consume.
type ModelInfo struct {
	ID        string `json:"id"`
	Downloads int64  `json:"downloads"`
	Likes     int64  `json:"likes"`

	hasDownloads bool
}

// HasDownloads reports whether the listing carried a downloads counter.
func (m ModelInfo) HasDownloads() bool { return m.hasDownloads }

func (m *ModelInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string `json:"id"`
		Downloads *int64 `json:"downloads"`
		Likes     int64  `json:"likes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ID = raw.ID
	m.Likes = raw.Likes
	if raw.Downloads != nil {
		m.Downloads = *raw.Downloads
		m.hasDownloads = true
	}
	return nil
}

// ModelQuery selects models from the hub listing.
type ModelQuery struct {
	Filter    string
	Sort      string
	Direction int
	Limit     int
}

// ListModels queries the hub model listing.
func (c *Client) ListModels(ctx context.Context, q ModelQuery) ([]ModelInfo, error) {
	params := url.Values{}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Direction != 0 {
		params.Set("direction", strconv.Itoa(q.Direction))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Filter != "" {
		params.Set("filter", q.Filter)
	}
	params.Set("full", "false")

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint+"/api/models?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list models", resp)
	}

	var models []ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("failed to decode model listing: %w", err)
	}
	return models, nil
}

type rowsResponse struct {
	Rows []struct {
		RowIdx int            `json:"row_idx"`
		Row    map[string]any `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// DatasetRows reads every row of the default/train split of a dataset
// through the datasets server, pageSize rows per request.
func (c *Client) DatasetRows(ctx context.Context, dataset string, pageSize int) ([]map[string]any, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	var rows []map[string]any
	for offset := 0; ; offset += pageSize {
		params := url.Values{}
		params.Set("dataset", dataset)
		params.Set("config", "default")
		params.Set("split", "train")
		params.Set("offset", strconv.Itoa(offset))
		params.Set("length", strconv.Itoa(pageSize))

		req, err := c.newRequest(ctx, http.MethodGet, c.datasetsServer+"/rows?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, fmt.Errorf("rows of %s: %w", dataset, ErrRepoNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			err := statusError("dataset rows", resp)
			resp.Body.Close()
			return nil, err
		}

		var page rowsResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode rows of %s: %w", dataset, err)
		}
		for _, r := range page.Rows {
			rows = append(rows, r.Row)
		}
		if len(page.Rows) == 0 || offset+len(page.Rows) >= page.NumRowsTotal {
			return rows, nil
		}
	}
}
