package errs

import "errors"

// Kind is the transport-independent category of an error.
type Kind string

const (
	KindNone               Kind = ""
	KindInvalidInput       Kind = "InvalidInput"
	KindNotFound           Kind = "NotFound"
	KindDuplicateImage     Kind = "DuplicateImage"
	KindPartialFailure     Kind = "PartialFailure"
	KindStorageUnavailable Kind = "StorageUnavailable"
	KindAlreadyExists      Kind = "AlreadyExists"
	KindUnauthorized       Kind = "Unauthorized"
	KindRateLimited        Kind = "RateLimited"
	KindInternal           Kind = "Internal"
)

// order matters: a partial failure may wrap a storage error, and must win.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrPartialFailure, KindPartialFailure},
	{ErrDuplicateImage, KindDuplicateImage},
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotFound, KindNotFound},
	{ErrAlreadyExists, KindAlreadyExists},
	{ErrStorageUnavailable, KindStorageUnavailable},
	{ErrUnauthorized, KindUnauthorized},
	{ErrRateLimited, KindRateLimited},
}

// KindOf classifies err. nil yields KindNone, anything unrecognised KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
