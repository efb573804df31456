package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/infra/logging"
)

const (
	WebhookPath      = "/telegram/webhook"
	secretHeader     = "X-Telegram-Bot-Api-Secret-Token"
	maxWebhookBody   = 1 << 20
	requestTimeout   = 30 * time.Second
	shutdownDeadline = 10 * time.Second
)

// UpdateSink accepts webhook updates; *telegram.Receiver satisfies it.
type UpdateSink interface {
	Enqueue(ctx context.Context, up tgbotapi.Update) error
}

type Activator interface {
	ActivateCompany(ctx context.Context, companyID int64) (*model.Company, error)
}

// OwnerNotifier tells the company owner about the activation; *application.Presenter satisfies it.
type OwnerNotifier interface {
	NotifyActivated(ctx context.Context, c *model.Company) error
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type Options struct {
	Port          int
	WebhookSecret string
	JWTSecret     string
}

type Server struct {
	opts      Options
	sink      UpdateSink
	activator Activator
	notifier  OwnerNotifier
	auth      *Auth
	checks    map[string]Check
	log       *zerolog.Logger
	srv       *http.Server
}

// NewServer builds the HTTP surface. sink may be nil when the bot runs in
// polling mode; the webhook route then answers 404.
func NewServer(opts Options, sink UpdateSink, activator Activator, notifier OwnerNotifier, checks map[string]Check, logger *zerolog.Logger) *Server {
	s := &Server{
		opts:      opts,
		sink:      sink,
		activator: activator,
		notifier:  notifier,
		auth:      NewAuth(opts.JWTSecret),
		checks:    checks,
		log:       logger,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID, middleware.RealIP, Recover(s.log), RequestLog(s.log), middleware.Timeout(requestTimeout))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())
	if s.sink != nil {
		r.Post(WebhookPath, s.webhook)
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/companies/{id}/activate", s.activate)
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Int("port", s.opts.Port).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownDeadline)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	out := map[string]string{}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": out})
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebhookSecret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "bad secret token")
			return
		}
	}
	var up tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&up); err != nil {
		writeError(w, http.StatusBadRequest, "malformed update")
		return
	}
	// Telegram retries non-2xx answers, so a stopped receiver still acknowledges.
	if err := s.sink.Enqueue(r.Context(), up); err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Int("update_id", up.UpdateID).Msg("webhook update dropped")
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid company id")
		return
	}
	company, err := s.activator.ActivateCompany(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "company or pending payment not found")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Int64("company_id", id).Msg("activation failed")
			writeError(w, http.StatusInternalServerError, "activation failed")
		}
		return
	}
	if err := s.notifier.NotifyActivated(r.Context(), company); err != nil {
		log.Warn().Err(err).Int64("company_id", id).Msg("owner notification failed")
	}
	log.Info().Int64("company_id", id).Str("plan", string(company.Plan)).Msg("company activated")
	writeJSON(w, http.StatusOK, company)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
