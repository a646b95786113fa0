// Package web provides HTTP handlers and REST API endpoints for workflow generation.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/complexity"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	conversationService *services.Conversation
	validationService   *services.Validation
	validator           *validator.Validate
	registry            *registry.Registry
	library             *patterns.Library
	generationTimeout   time.Duration
}

type HandlerOption func(*APIHandlers)

// WithGenerationTimeout bounds every generation request. Zero means unbounded.
func WithGenerationTimeout(d time.Duration) HandlerOption {
	return func(h *APIHandlers) {
		h.generationTimeout = d
	}
}

func NewAPIHandlers(
	conversationService *services.Conversation,
	validationService *services.Validation,
	validator *validator.Validate,
	registry *registry.Registry,
	library *patterns.Library,
	opts ...HandlerOption,
) *APIHandlers {
	h := &APIHandlers{
		conversationService: conversationService,
		validationService:   validationService,
		validator:           validator,
		registry:            registry,
		library:             library,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *APIHandlers) StartConversation(c fiber.Ctx) error {
	var req StartConversationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.conversationService.Start(c.Context(), req.Request)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StartConversationResponse{
		SessionID:        session.ID,
		Complexity:       session.Analysis.Score,
		Route:            session.Analysis.Route,
		Analysis:         session.Analysis,
		InitialQuestions: session.Questions,
	})
}

func (h *APIHandlers) AnswerQuestion(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	var req AnswerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.conversationService.Answer(c.Context(), id, req.QuestionID, req.Answer)
	if err != nil {
		return handleServiceError(c, err)
	}

	if result.NewQuestions == nil {
		result.NewQuestions = []*models.Question{}
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetConversation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	status, err := h.conversationService.Status(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) GetSummary(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	summary, err := h.conversationService.Summary(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) DeleteConversation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	if err := h.conversationService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GenerateConversation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	var req GenerateRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	ctx, cancel := h.generationContext(c.Context())
	defer cancel()

	result, err := h.conversationService.Generate(ctx, id, req.Force)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewGenerateResponse(id, result))
}

func (h *APIHandlers) GenerateDirect(c fiber.Ctx) error {
	var req DirectGenerateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := h.generationContext(c.Context())
	defer cancel()

	session, result, err := h.conversationService.GenerateDirect(ctx, req.Request)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewGenerateResponse(session.ID, result))
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	var req ValidateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	document := string(req.Workflow)

	// Workflows pasted from the n8n editor sometimes arrive as a JSON string.
	var embedded string
	if err := json.Unmarshal(req.Workflow, &embedded); err == nil {
		document = embedded
	}

	report, err := h.validationService.Validate(document, req.Tier)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) Analyze(c fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	analysis := complexity.Analyze(req.Request)

	return c.JSON(AnalyzeResponse{
		Analysis:     analysis,
		Requirements: complexity.Seed(req.Request, analysis).Map(),
	})
}

func (h *APIHandlers) GetNodes(c fiber.Ctx) error {
	kinds := h.registry.Kinds()

	if category := c.Query("category"); category != "" {
		kinds = h.registry.ByCategory(registry.Category(category))
	}

	nodes := make([]NodeResponse, 0, len(kinds))
	for _, spec := range kinds {
		nodes = append(nodes, TransformNodeResponse(spec))
	}

	return c.JSON(fiber.Map{
		"nodes":       nodes,
		"total_count": len(nodes),
	})
}

func (h *APIHandlers) GetNode(c fiber.Ctx) error {
	kind := c.Params("kind")

	spec, ok := h.registry.Get(kind)
	if !ok {
		return notFound(c, "node_not_found", "node kind not found")
	}

	return c.JSON(fiber.Map{
		"node":   TransformNodeResponse(spec),
		"schema": spec.Schema(),
	})
}

func (h *APIHandlers) GetPatterns(c fiber.Ctx) error {
	fragments := h.library.All()

	if tier := c.Query("tier"); tier != "" {
		fragments = h.library.ByTier(models.FragmentTier(tier))
	}

	out := make([]PatternResponse, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, TransformPatternResponse(f))
	}

	return c.JSON(fiber.Map{
		"patterns":    out,
		"total_count": len(out),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.conversationService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flow maker API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flow maker API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   len(h.registry.Kinds()),
			"patterns":   len(h.library.All()),
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.generationTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, h.generationTimeout)
}
