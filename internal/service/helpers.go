package service

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// validate runs struct validation and reports the first failing field as a Validation error.
func validate(v *validator.Validate, payload interface{}) error {
	if v == nil {
		return nil
	}
	err := v.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		return apperrors.Wrap(apperrors.CodeValidation, fmt.Sprintf("%s failed %s validation", strings.ToLower(first.Field()), first.Tag()), err)
	}
	return apperrors.Wrap(apperrors.CodeValidation, "invalid payload", err)
}

// plainText trims input and rejects it with a Validation error when the policy
// would strip anything from it. The policy escapes entities, so its output is
// unescaped before comparing.
func plainText(policy *bluemonday.Policy, field, input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if html.UnescapeString(policy.Sanitize(trimmed)) != trimmed {
		return "", apperrors.Validation(field + " must not contain markup")
	}
	return trimmed, nil
}

func normalizeNetID(netID string) string {
	return strings.ToLower(strings.TrimSpace(netID))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
