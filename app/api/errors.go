package api

import (
	"database/sql"
	"errors"
	"fmt"

	"mindvault/types"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the central fiber error handler. Domain errors from
// the retrieval flows map onto user-facing conditions here; raw model
// output and response bodies stay in the logs.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if apiError, ok := err.(Error); ok {
		return c.Status(apiError.Code).JSON(apiError)
	}
	if valError, ok := err.(ValidationError); ok {
		return c.Status(valError.Status).JSON(valError)
	}

	var embErr *types.EmbeddingServiceError
	var genErr *types.GenerationServiceError
	var parseErr *types.ParseError

	switch {
	case errors.Is(err, types.ErrNoContext):
		return c.Status(fiber.StatusBadRequest).JSON(NewError(fiber.StatusBadRequest, err.Error()))
	case errors.Is(err, types.ErrEmptyResult):
		log.Warn().Err(err).Msg("model output survived parsing but held no valid entries")
		return c.Status(fiber.StatusBadGateway).JSON(NewError(fiber.StatusBadGateway, err.Error()))
	case errors.As(err, &embErr):
		log.Error().Int("status", embErr.Status).Str("detail", embErr.Detail).Msg("embedding service failed")
		return c.Status(fiber.StatusBadGateway).JSON(NewError(fiber.StatusBadGateway, "embedding service unavailable"))
	case errors.As(err, &genErr):
		log.Error().Int("status", genErr.Status).Str("detail", genErr.Detail).Msg("generation service failed")
		return c.Status(fiber.StatusBadGateway).JSON(NewError(fiber.StatusBadGateway, "AI service unavailable"))
	case errors.As(err, &parseErr):
		log.Error().Str("detail", parseErr.Detail).Msg("unparsable model output")
		return c.Status(fiber.StatusBadGateway).JSON(NewError(fiber.StatusBadGateway, "failed to parse AI output"))
	case errors.Is(err, sql.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(NewError(fiber.StatusNotFound, "resource not found"))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).
		JSON(NewError(fiber.StatusInternalServerError, "internal server error"))
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusUnprocessableEntity,
		Errors: errors,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrUnAuthorized(msg string) Error {
	return Error{
		Code:    fiber.StatusUnauthorized,
		Message: msg,
	}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}
