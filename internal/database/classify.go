package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc/codes"

	"storefront/internal/retry"
)

// Server error codes, see
// https://github.com/mongodb/mongo/blob/master/src/mongo/base/error_codes.yml
var serverCodeClasses = map[int]codes.Code{
	1:     codes.Internal,          // InternalError
	6:     codes.Unavailable,       // HostUnreachable
	7:     codes.Unavailable,       // HostNotFound
	13:    codes.PermissionDenied,  // Unauthorized
	24:    codes.Aborted,           // LockTimeout
	50:    codes.DeadlineExceeded,  // MaxTimeMSExpired
	89:    codes.DeadlineExceeded,  // NetworkTimeout
	91:    codes.Unavailable,       // ShutdownInProgress
	112:   codes.Aborted,           // WriteConflict
	146:   codes.ResourceExhausted, // ExceededMemoryLimit
	189:   codes.Unavailable,       // PrimarySteppedDown
	251:   codes.Aborted,           // NoSuchTransaction
	262:   codes.DeadlineExceeded,  // ExceededTimeLimit
	9001:  codes.Unavailable,       // SocketException
	10107: codes.Unavailable,       // NotWritablePrimary
	11600: codes.Unavailable,       // InterruptedAtShutdown
	11602: codes.Unavailable,       // InterruptedDueToReplStateChange
	13435: codes.Unavailable,       // NotPrimaryNoSecondaryOk
	13436: codes.Unavailable,       // NotPrimaryOrSecondary
	16500: codes.ResourceExhausted, // RequestRateTooLarge
}

// ClassifyMongoError maps driver errors onto the retry vocabulary.
func ClassifyMongoError(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return codes.DeadlineExceeded
	case mongo.IsDuplicateKeyError(err):
		return codes.AlreadyExists
	case mongo.IsNetworkError(err):
		return codes.Unavailable
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		for code, class := range serverCodeClasses {
			if serverErr.HasErrorCode(code) {
				return class
			}
		}
		if serverErr.HasErrorLabel("TransientTransactionError") {
			return codes.Aborted
		}
		if serverErr.HasErrorLabel("RetryableWriteError") {
			return codes.Unavailable
		}
	}

	return retry.ClassifyStatus(err)
}
