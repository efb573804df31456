package business

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/infra/logging"
	"telegram-invoicing-bot/internal/infra/metrics"
)

var _ adapter.BusinessAPI = (*HTTPClient)(nil)

// HTTPClient talks to the REST collaborator that owns tenants and the catalog.
// Every call is bounded by the client timeout.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zerolog.Logger
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *zerolog.Logger) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid business base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "BusinessHTTPClient").Logger()
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     &l,
	}, nil
}

// apiError is the error body of the collaborator: {"error": "not_found", "message": "..."}.
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

var errorCodes = map[string]error{
	"not_found":          domain.ErrNotFound,
	"already_exists":     domain.ErrAlreadyExists,
	"company_exists":     domain.ErrCompanyExists,
	"limit_exceeded":     domain.ErrLimitExceeded,
	"insufficient_stock": domain.ErrInsufficientStock,
	"invalid_argument":   domain.ErrInvalidArgument,
}

// statusError maps a non-2xx response onto the domain taxonomy.
func statusError(status int, body []byte) error {
	var e apiError
	_ = json.Unmarshal(body, &e)
	if mapped, ok := errorCodes[e.Code]; ok {
		return mapped
	}
	switch {
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusConflict:
		return domain.ErrAlreadyExists
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("business api http %d: %w", status, domain.ErrTransport)
	case status >= 400 && status < 500:
		return domain.ErrInvalidArgument
	}
	return fmt.Errorf("business api http %d: %w", status, domain.ErrTransport)
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out interface{}) (err error) {
	defer metrics.ObserveBusinessCall("http", op, time.Now(), &err)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := logging.TraceID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		logging.With(ctx, c.log).Warn().Err(err).Str("op", op).Msg("business api call failed")
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrTransport)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %v: %w", op, err, domain.ErrTransport)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode: %v: %w", op, err, domain.ErrTransport)
	}
	return nil
}

func companyPath(companyID int64, rest string) string {
	return "/companies/" + strconv.FormatInt(companyID, 10) + rest
}

func listQuery(limit int, query string) string {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if query != "" {
		v.Set("q", query)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (c *HTTPClient) FindUserByPlatformID(ctx context.Context, telegramID int64) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, "find_user", http.MethodGet, "/users/by-telegram/"+strconv.FormatInt(telegramID, 10), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) GetCompany(ctx context.Context, companyID int64) (*model.Company, error) {
	var co model.Company
	if err := c.do(ctx, "get_company", http.MethodGet, companyPath(companyID, ""), nil, &co); err != nil {
		return nil, err
	}
	return &co, nil
}

func (c *HTTPClient) CreateCompany(ctx context.Context, d model.CompanyDraft) (*model.Company, error) {
	var co model.Company
	if err := c.do(ctx, "create_company", http.MethodPost, "/companies", d, &co); err != nil {
		return nil, err
	}
	return &co, nil
}

func (c *HTTPClient) ActivateCompany(ctx context.Context, companyID int64) (*model.Company, error) {
	var co model.Company
	if err := c.do(ctx, "activate_company", http.MethodPost, companyPath(companyID, "/activate"), nil, &co); err != nil {
		return nil, err
	}
	return &co, nil
}

func (c *HTTPClient) CreateClient(ctx context.Context, companyID, userID int64, d model.ClientDraft) (*model.Client, error) {
	in := struct {
		model.ClientDraft
		UserID int64 `json:"user_id"`
	}{d, userID}
	var cl model.Client
	if err := c.do(ctx, "create_client", http.MethodPost, companyPath(companyID, "/clients"), in, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *HTTPClient) GetClient(ctx context.Context, companyID, id int64) (*model.Client, error) {
	var cl model.Client
	if err := c.do(ctx, "get_client", http.MethodGet, companyPath(companyID, "/clients/"+strconv.FormatInt(id, 10)), nil, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *HTTPClient) ListClients(ctx context.Context, companyID int64, limit int) ([]*model.Client, error) {
	var out []*model.Client
	err := c.do(ctx, "list_clients", http.MethodGet, companyPath(companyID, "/clients"+listQuery(limit, "")), nil, &out)
	return out, err
}

func (c *HTTPClient) SearchClients(ctx context.Context, companyID int64, query string, limit int) ([]*model.Client, error) {
	var out []*model.Client
	err := c.do(ctx, "search_clients", http.MethodGet, companyPath(companyID, "/clients"+listQuery(limit, query)), nil, &out)
	return out, err
}

type fieldUpdate struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (c *HTTPClient) UpdateClientField(ctx context.Context, companyID, id int64, field, value string) (*model.Client, error) {
	var cl model.Client
	path := companyPath(companyID, "/clients/"+strconv.FormatInt(id, 10))
	if err := c.do(ctx, "update_client", http.MethodPatch, path, fieldUpdate{field, value}, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *HTTPClient) DeleteClient(ctx context.Context, companyID, id int64) error {
	return c.do(ctx, "delete_client", http.MethodDelete, companyPath(companyID, "/clients/"+strconv.FormatInt(id, 10)), nil, nil)
}

func (c *HTTPClient) CreateArticle(ctx context.Context, companyID, userID int64, d model.ArticleDraft) (*model.Article, error) {
	in := struct {
		model.ArticleDraft
		UserID int64 `json:"user_id"`
	}{d, userID}
	var a model.Article
	if err := c.do(ctx, "create_article", http.MethodPost, companyPath(companyID, "/articles"), in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) GetArticle(ctx context.Context, companyID, id int64) (*model.Article, error) {
	var a model.Article
	if err := c.do(ctx, "get_article", http.MethodGet, companyPath(companyID, "/articles/"+strconv.FormatInt(id, 10)), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) ListArticles(ctx context.Context, companyID int64, limit int) ([]*model.Article, error) {
	var out []*model.Article
	err := c.do(ctx, "list_articles", http.MethodGet, companyPath(companyID, "/articles"+listQuery(limit, "")), nil, &out)
	return out, err
}

func (c *HTTPClient) SearchArticles(ctx context.Context, companyID int64, query string, limit int) ([]*model.Article, error) {
	var out []*model.Article
	err := c.do(ctx, "search_articles", http.MethodGet, companyPath(companyID, "/articles"+listQuery(limit, query)), nil, &out)
	return out, err
}

func (c *HTTPClient) UpdateArticleField(ctx context.Context, companyID, id int64, field, value string) (*model.Article, error) {
	var a model.Article
	path := companyPath(companyID, "/articles/"+strconv.FormatInt(id, 10))
	if err := c.do(ctx, "update_article", http.MethodPatch, path, fieldUpdate{field, value}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) AdjustArticleStock(ctx context.Context, companyID, id, userID int64, op model.StockOp, qty int64) (*model.Article, model.StockChange, error) {
	in := struct {
		Op       model.StockOp `json:"op"`
		Quantity int64         `json:"quantity"`
		UserID   int64         `json:"user_id"`
	}{op, qty, userID}
	var out struct {
		Article model.Article     `json:"article"`
		Change  model.StockChange `json:"change"`
	}
	path := companyPath(companyID, "/articles/"+strconv.FormatInt(id, 10)+"/stock")
	if err := c.do(ctx, "adjust_stock", http.MethodPost, path, in, &out); err != nil {
		return nil, model.StockChange{}, err
	}
	return &out.Article, out.Change, nil
}

func (c *HTTPClient) RecordMovement(ctx context.Context, companyID, articleID, userID int64, t model.MovementType, qty int64) (*model.Movement, error) {
	in := struct {
		Type     model.MovementType `json:"type"`
		Quantity int64              `json:"quantity"`
		UserID   int64              `json:"user_id"`
	}{t, qty, userID}
	var m model.Movement
	path := companyPath(companyID, "/articles/"+strconv.FormatInt(articleID, 10)+"/movements")
	if err := c.do(ctx, "record_movement", http.MethodPost, path, in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *HTTPClient) ListMovements(ctx context.Context, companyID, articleID int64, limit int) ([]*model.Movement, error) {
	var out []*model.Movement
	path := companyPath(companyID, "/articles/"+strconv.FormatInt(articleID, 10)+"/movements"+listQuery(limit, ""))
	err := c.do(ctx, "list_movements", http.MethodGet, path, nil, &out)
	return out, err
}

func (c *HTTPClient) DeleteArticle(ctx context.Context, companyID, id int64) error {
	return c.do(ctx, "delete_article", http.MethodDelete, companyPath(companyID, "/articles/"+strconv.FormatInt(id, 10)), nil, nil)
}

func (c *HTTPClient) GetPlanPrice(ctx context.Context, plan model.PlanTier) (int64, error) {
	var out struct {
		Amount int64 `json:"amount"`
	}
	if err := c.do(ctx, "plan_price", http.MethodGet, "/plans/"+url.PathEscape(string(plan))+"/price", nil, &out); err != nil {
		return 0, err
	}
	return out.Amount, nil
}

func (c *HTTPClient) SubmitPaymentProof(ctx context.Context, s model.PaymentSubmission) (*model.PaymentRecord, error) {
	var r model.PaymentRecord
	if err := c.do(ctx, "submit_payment", http.MethodPost, companyPath(s.CompanyID, "/payments"), s, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
