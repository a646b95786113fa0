package web

import (
	"context"
	"errors"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var serviceErr *services.ServiceError

	code := ""
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code
	}

	switch {
	case services.IsNotFoundError(err):
		if code == "" {
			code = "not_found"
		}

		return notFound(c, code, err.Error())

	case services.IsValidationError(err):
		if code == "" {
			code = "validation_error"
		}

		problem := problems.NewStatusProblem(fiber.StatusBadRequest).
			WithInstance(c.Path()).
			WithType(code).
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, services.ErrGenerationUnavailable):
		problem := problems.NewStatusProblem(fiber.StatusServiceUnavailable).
			WithInstance(c.Path()).
			WithType("generation_unavailable").
			WithDetail("no generation pipeline is configured")

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	case errors.Is(err, context.DeadlineExceeded):
		problem := problems.NewStatusProblem(fiber.StatusGatewayTimeout).
			WithInstance(c.Path()).
			WithType("timeout").
			WithDetail("generation did not finish in time")

		return c.Status(fiber.StatusGatewayTimeout).JSON(problem)

	default:
		problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
