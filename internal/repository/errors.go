package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// translate maps gorm's missing-row condition to NotFound and every other
// store failure to Storage. Errors that already carry a code pass through.
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity + " not found")
	}
	return apperrors.Storage(entity+" storage failure", err)
}
