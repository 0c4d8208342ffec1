package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/canteen-orders/internal/common"
	"github.com/joseph-ayodele/canteen-orders/internal/ocr"
	"github.com/joseph-ayodele/canteen-orders/internal/orders"
	"github.com/joseph-ayodele/canteen-orders/internal/pipeline"
)

// toStatus maps domain errors onto gRPC status codes. Errors that already
// carry a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if kind, ok := pipeline.KindOf(err); ok {
		switch kind {
		case pipeline.KindOCRFailure, pipeline.KindValidationFailed:
			return common.InvalidArgumentError(err.Error())
		case pipeline.KindBackendFailure, pipeline.KindEmptyResponse:
			return common.UnavailableError(err.Error())
		default:
			return status.Error(codes.Internal, err.Error())
		}
	}
	switch {
	case errors.Is(err, common.ErrNotFound):
		return common.NotFoundError(err.Error())
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, common.ErrConflict):
		return common.FailedPreconditionError(err.Error())
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, ocr.ErrInvalidImage):
		return common.InvalidArgumentError(err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
