package gpamongo

import (
	"context"
	"errors"
	"strings"

	"github.com/lemmego/gpadmin"
	"go.mongodb.org/mongo-driver/mongo"
)

// =====================================
// Error Conversion
// =====================================

// convertMongoError converts MongoDB errors to gpadmin errors
func convertMongoError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeNotFound, "document not found", err)
	case errors.Is(err, mongo.ErrNilDocument), errors.Is(err, mongo.ErrNilValue):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeValidation, "nil document provided", err)
	case mongo.IsDuplicateKeyError(err):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeDuplicate, "duplicate key violation", err)
	case mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTimeout, "operation timeout", err)
	case mongo.IsNetworkError(err):
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "connection error", err)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 26, 48: // NamespaceNotFound, CollectionNotFound
			return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeNotFound, "collection not found", err)
		case 13, 18: // Unauthorized, AuthenticationFailed
			return gpadmin.NewErrorWithCause(gpadmin.ErrorTypePermission, "unauthorized access", err)
		case 251, 244: // NoSuchTransaction, TransactionTooOld
			return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTransaction, "transaction aborted", err)
		case 121: // DocumentValidationFailure
			return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeValidation, "document validation failed", err)
		}
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == 121 {
				return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeValidation, "document validation failed", err)
			}
		}
	}

	if strings.Contains(strings.ToLower(err.Error()), "connection") {
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "connection error", err)
	}
	return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeDatabase, "database operation failed", err)
}
