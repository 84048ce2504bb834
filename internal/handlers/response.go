package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"mercado/internal/apperror"
	"mercado/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const genericInternalMessage = "internal server error"

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorHandler renders every error returned by a handler or middleware into
// the response envelope. Internal causes are logged and only shown to
// clients in development.
func ErrorHandler(log *zap.Logger, development bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": true, "mensaje": fe.Message})
		}

		appErr := apperror.From(err)
		body := fiber.Map{"error": true, "mensaje": appErr.Message}
		if appErr.Kind == apperror.KindInternal {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				zap.Error(err))
			if !development {
				body["mensaje"] = genericInternalMessage
			}
		}
		if len(appErr.Fields) > 0 {
			body["errores"] = appErr.Fields
		}
		for k, v := range appErr.Extra {
			body[k] = v
		}
		return c.Status(appErr.Status()).JSON(body)
	}
}

// respond writes a successful envelope.
func respond(c *fiber.Ctx, status int, message string, payload fiber.Map) error {
	body := fiber.Map{"error": false}
	if message != "" {
		body["mensaje"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

func respondPage[T any](c *fiber.Ctx, key string, page *services.Page[T]) error {
	return respond(c, fiber.StatusOK, "", fiber.Map{
		key: page.Items,
		"metadata": fiber.Map{
			"total":           page.Total,
			"pagina_actual":   page.Pagination.Page,
			"paginas_totales": page.TotalPages(),
			"limite":          page.Pagination.Limit,
		},
	})
}

// bindJSON parses the request body into dst and validates it.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperror.Validation("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperror.Internal("failed to validate request", err)
		}
		fields := make([]apperror.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apperror.FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
		}
		return apperror.Validation("validation failed", fields...)
	}
	return nil
}

// fieldPath drops the struct name from the namespace: items[0].cantidad.
func fieldPath(fe validator.FieldError) string {
	if _, path, ok := strings.Cut(fe.Namespace(), "."); ok {
		return path
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s elements", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters long", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}
