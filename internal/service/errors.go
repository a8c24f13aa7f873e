package service

import (
	"errors"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
)

// internalError оборачивает инфраструктурную ошибку в ErrInternal, типизированные ошибки пропускает как есть
func internalError(err error, message string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Wrap(err, apperr.ErrInternal.Code, apperr.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return apperr.Wrap(err, apperr.ErrValidation.Code, apperr.ErrValidation.Status, message)
}

// resultLabel метка метрики: "ok" или код ошибки
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.FromError(err).Code
}
