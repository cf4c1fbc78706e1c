// Package client talks to the gradebook persistence API. It implements the
// engine's ConfigurationPersistence and GradePersistence collaborators.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/dto"
	"github.com/noah-isme/sma-gradebook-api/internal/gradebook"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

var (
	_ gradebook.ConfigurationPersistence = (*Client)(nil)
	_ gradebook.GradePersistence         = (*Client)(nil)
)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	logger  *zap.Logger
}

// New builds a client for the API rooted at baseURL, e.g. http://host:8080/api/v1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// ListConfigurations implements gradebook.ConfigurationPersistence.
func (c *Client) ListConfigurations(ctx context.Context, courseSlug string) ([]models.GradebookConfiguration, error) {
	var configs []models.GradebookConfiguration
	if err := c.do(ctx, http.MethodGet, coursePath(courseSlug, "grade-configs"), nil, nil, &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

// CreateConfiguration implements gradebook.ConfigurationPersistence.
func (c *Client) CreateConfiguration(ctx context.Context, courseSlug string, draft models.GradebookConfiguration) (*models.GradebookConfiguration, error) {
	var created models.GradebookConfiguration
	body := dto.NewCreateGradeConfigRequest(draft)
	if err := c.do(ctx, http.MethodPost, coursePath(courseSlug, "grade-configs"), nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateConfiguration implements gradebook.ConfigurationPersistence.
func (c *Client) UpdateConfiguration(ctx context.Context, courseSlug string, cfg models.GradebookConfiguration, confirm bool) (*models.GradebookConfiguration, error) {
	query := url.Values{}
	if confirm {
		query.Set("confirm", "true")
	}
	var updated models.GradebookConfiguration
	path := coursePath(courseSlug, "grade-configs", cfg.ID)
	if err := c.do(ctx, http.MethodPut, path, query, dto.NewUpdateGradeConfigRequest(cfg), &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// LoadGrades implements gradebook.GradePersistence.
func (c *Client) LoadGrades(ctx context.Context, courseSlug string, date time.Time, configID string) ([]models.StudentScore, error) {
	var sheet models.GradeSheet
	if err := c.do(ctx, http.MethodGet, coursePath(courseSlug, "grades"), sheetQuery(date, configID), nil, &sheet); err != nil {
		return nil, err
	}
	return sheet.Scores, nil
}

// SaveGrades implements gradebook.GradePersistence.
func (c *Client) SaveGrades(ctx context.Context, courseSlug string, date time.Time, configID string, scores []models.StudentScore) error {
	body := dto.NewSaveGradesRequest(scores)
	return c.do(ctx, http.MethodPost, coursePath(courseSlug, "grades"), sheetQuery(date, configID), body, nil)
}

// Export downloads a rendered grade sheet.
func (c *Client) Export(ctx context.Context, courseSlug string, date time.Time, configID, format string) ([]byte, error) {
	query := sheetQuery(date, configID)
	if format != "" {
		query.Set("format", format)
	}
	req, err := c.newRequest(ctx, http.MethodGet, coursePath(courseSlug, "grades", "export"), query, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("gradebook api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// decodeError turns an error envelope back into the typed error the server raised.
func decodeError(resp *http.Response) error {
	var env envelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Code != "" {
		env.Error.Status = resp.StatusCode
		return env.Error
	}
	return appErrors.New(appErrors.ErrPersistence.Code, resp.StatusCode,
		fmt.Sprintf("unexpected status %d from gradebook api", resp.StatusCode))
}

func coursePath(courseSlug string, parts ...string) string {
	segments := append([]string{"", "courses", url.PathEscape(courseSlug)}, parts...)
	for i := 3; i < len(segments); i++ {
		segments[i] = url.PathEscape(segments[i])
	}
	return strings.Join(segments, "/")
}

func sheetQuery(date time.Time, configID string) url.Values {
	query := url.Values{}
	query.Set("date", date.Format(models.DateLayout))
	query.Set("criteriaId", configID)
	return query
}
