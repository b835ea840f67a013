package api

import (
	"errors"
	"net/http"

	models "SentiTrade/internal/domain/models"
	xhttp "SentiTrade/pkg/http"
)

// toAppError maps domain errors onto the API error envelope.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var riskErr *models.RiskError
	switch {
	case errors.As(err, &riskErr):
		return xhttp.UnprocessableError("ERR_RISK_REJECTED", riskErr.Reason).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInvalidObservation), errors.Is(err, models.ErrInvalidTransition):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", err.Error()).WithError(err)
	case errors.Is(err, models.ErrNoPrice):
		return xhttp.UnprocessableError("ERR_NO_PRICE", err.Error()).WithError(err)
	case errors.Is(err, models.ErrNegativePosition):
		return xhttp.UnprocessableError("ERR_NEGATIVE_POSITION", err.Error()).WithError(err)
	case errors.Is(err, models.ErrConfiguration):
		return xhttp.UnprocessableError("ERR_CONFIGURATION", err.Error()).WithError(err)
	case errors.Is(err, models.ErrBrokerTransient), errors.Is(err, models.ErrBrokerPermanent):
		return xhttp.BadGatewayError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrReconciliationFault):
		return xhttp.NewAppError("ERR_RECONCILIATION_FAULT", err.Error(), http.StatusConflict).WithError(err)
	case errors.Is(err, models.ErrLockTimeout):
		return xhttp.ServiceUnavailableError(err.Error()).WithError(err)
	}
	return xhttp.InternalError("Something went wrong").WithError(err)
}
