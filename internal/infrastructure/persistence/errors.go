package persistence

import (
	"errors"

	"gorm.io/gorm"

	"github.com/erp/shopsync/internal/domain/integration"
)

// translate maps gorm errors onto domain errors. notFound is returned for
// gorm.ErrRecordNotFound; unique violations become ErrDuplicateExternal.
func translate(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return integration.ErrDuplicateExternal
	default:
		return err
	}
}
