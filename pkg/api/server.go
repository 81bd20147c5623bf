// Package api exposes the HTTP ingress: synchronous analysis, asynchronous
// enqueueing, verdict lookup, and reviewer feedback.
package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/pipeline"
	"github.com/trustlayer-ai/bastion/pkg/queue"
	"github.com/trustlayer-ai/bastion/pkg/storage"
)

// Store is the persistence surface the API needs. Satisfied by
// storage.Postgres.
type Store interface {
	SaveVerdict(ctx context.Context, v content.RiskVerdict) error
	GetVerdict(ctx context.Context, requestID string) (content.RiskVerdict, error)
	SaveFeedback(ctx context.Context, fb content.Feedback) error
}

// Server mounts the HTTP routes over the pipeline and its backing stores.
// store and bus may be nil; the corresponding endpoints degrade gracefully.
type Server struct {
	executor *pipeline.Executor
	store    Store
	bus      *queue.Bus
	logger   zerolog.Logger
	version  string
}

func NewServer(executor *pipeline.Executor, store Store, bus *queue.Bus, version string, logger zerolog.Logger) *Server {
	return &Server{
		executor: executor,
		store:    store,
		bus:      bus,
		logger:   logger.With().Str("component", "api").Logger(),
		version:  version,
	}
}

// App builds the fiber application with all routes mounted.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Bastion",
	})

	app.Get("/health", s.handleHealth)
	app.Post("/analyze", s.handleAnalyze)
	app.Get("/status/:id", s.handleStatus)
	app.Post("/feedback", s.handleFeedback)

	return app
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	status := fiber.Map{"status": "ok", "version": s.version}
	if s.bus != nil {
		status["queue_connected"] = s.bus.IsConnected()
	}
	return c.JSON(status)
}

type analyzeRequest struct {
	RequestID   string `json:"request_id"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	Async       bool   `json:"async"`
}

func (s *Server) handleAnalyze(c fiber.Ctx) error {
	var req analyzeRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	ct, ok := content.ParseContentType(req.ContentType)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content_type must be one of: html, plain, text, json, image",
		})
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	sub := content.Submission{
		ID:          req.RequestID,
		ContentType: ct,
		RawContent:  req.Content,
	}

	if req.Async {
		if s.bus == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "async analysis not configured"})
		}
		if err := s.bus.PublishSubmission(sub); err != nil {
			s.logger.Error().Err(err).Str("request_id", sub.ID).Msg("submission enqueue failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "enqueue failed"})
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"request_id": sub.ID,
			"status":     "queued",
		})
	}

	verdict := s.executor.Process(c.Context(), sub)

	if s.store != nil {
		if err := s.store.SaveVerdict(c.Context(), verdict); err != nil {
			s.logger.Error().Err(err).Str("request_id", verdict.RequestID).Msg("verdict persistence failed")
		}
	}

	return c.JSON(verdict)
}

func (s *Server) handleStatus(c fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "verdict storage not configured"})
	}

	id := c.Params("id")
	verdict, err := s.store.GetVerdict(c.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown request id"})
	}
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", id).Msg("verdict lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}
	return c.JSON(verdict)
}

func (s *Server) handleFeedback(c fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "verdict storage not configured"})
	}

	var fb content.Feedback
	if err := c.Bind().Body(&fb); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if fb.RequestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "request_id is required"})
	}

	err := s.store.SaveFeedback(c.Context(), fb)
	if errors.Is(err, storage.ErrNotFound) {
		// Feedback for a request we never saw is logged and dropped rather
		// than rejected, since reviewers may lag behind verdict retention.
		s.logger.Warn().Str("request_id", fb.RequestID).Msg("feedback for unknown request id ignored")
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ignored"})
	}
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", fb.RequestID).Msg("feedback persistence failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "feedback failed"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "recorded"})
}
