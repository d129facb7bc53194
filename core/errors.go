package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced at the package boundary, one per kind in the
// error-handling design: type-exists, unknown-type, bad-format,
// bad-name, out-of-memory, not-supported, not-found, end-of-caches,
// permission-denied, and backend-defined (anything else a backend
// returns is wrapped, not replaced).
const (
	CCErrorTypeExists       = "CC_TYPE_EXISTS"
	CCErrorUnknownType      = "CC_UNKNOWN_TYPE"
	CCErrorNoMem            = "CC_NOMEM"
	CCErrorNotFound         = "CC_NOT_FOUND"
	CCErrorNoSupport        = "CC_NO_SUPPORT"
	CCErrorBadName          = "CC_BAD_NAME"
	CCErrorBadFormat        = "CC_BAD_FORMAT"
	CCErrorEndOfCaches      = "CC_END_OF_CACHES"
	CCErrorPermissionDenied = "CC_PERMISSION_DENIED"
	CCErrorBackend          = "CC_BACKEND_DEFINED"
	CCErrorInternal         = "CC_INTERNAL_ERROR"
)

// ErrEndOfSequence is the sentinel a backend's GetNext returns once a
// per-cache sequence cursor is exhausted. It is a plain sentinel, not a
// *goerrors.Error, so backend implementations can return it directly.
var ErrEndOfSequence = errors.New("core: end of sequence")

// ErrEndOfCaches is the sentinel a CollectionEnumerator's GetCacheFirst
// or GetCacheNext returns once its own cache list is exhausted. Plain
// sentinel, not a *goerrors.Error, so out-of-package backends can
// return it directly without importing goerrors.
var ErrEndOfCaches = errors.New("core: end of caches")

// ErrCredentialNotFound is the sentinel a backend's Retriever or
// Remover implementation returns when no stored credential matches the
// requested mask/template. Plain sentinel so out-of-package backends
// can return it directly; wrapBackendError and IsNotFound both
// recognize it.
var ErrCredentialNotFound = errors.New("core: no credential matches template")

func newCCError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureCCErrorEnvelope(goerrors.New(message, category).WithTextCode(textCode))
}

func errTypeExists(prefix string) error {
	return newCCError(fmt.Sprintf("core: backend already registered: %s", prefix), goerrors.CategoryConflict, CCErrorTypeExists)
}

func errUnknownType(hint string) error {
	return newCCError(fmt.Sprintf("core: no backend registered for %q", hint), goerrors.CategoryNotFound, CCErrorUnknownType)
}

func errBadName(reason string) error {
	return newCCError(fmt.Sprintf("core: bad name: %s", reason), goerrors.CategoryBadInput, CCErrorBadName)
}

func errBadFormat(reason string) error {
	return newCCError(fmt.Sprintf("core: bad format: %s", reason), goerrors.CategoryBadInput, CCErrorBadFormat)
}

func errNotSupported(operation string) error {
	return newCCError(fmt.Sprintf("core: %s is not supported", operation), goerrors.CategoryOperation, CCErrorNoSupport)
}

func errNotFound(reason string) error {
	return newCCError(fmt.Sprintf("core: not found: %s", reason), goerrors.CategoryNotFound, CCErrorNotFound)
}

func errEndOfCaches() error {
	return newCCError("core: end of caches", goerrors.CategoryNotFound, CCErrorEndOfCaches)
}

func errPermissionDenied(operation string) error {
	return newCCError(fmt.Sprintf("core: %s requires backend support that is absent", operation), goerrors.CategoryAuthz, CCErrorPermissionDenied)
}

// wrapBackendError wraps an error a backend returned without a
// recognized CC text code so the original cause survives errors.Is /
// errors.As while still carrying a CC-shaped envelope.
func wrapBackendError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEndOfSequence) || errors.Is(err, ErrEndOfCaches) || errors.Is(err, ErrCredentialNotFound) {
		return err
	}
	var existing *goerrors.Error
	if errors.As(err, &existing) {
		return err
	}
	wrapped := goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("core: backend error during %s", operation))
	wrapped.TextCode = CCErrorBackend
	return ensureCCErrorEnvelope(wrapped)
}

func ensureCCErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = ccHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = CCErrorInternal
	}
	return err
}

func ccHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFound reports whether err is (or wraps) a not-found CC error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound) || hasTextCode(err, CCErrorNotFound)
}

// IsEndOfCaches reports whether err is (or wraps) an end-of-caches CC
// error.
func IsEndOfCaches(err error) bool {
	return errors.Is(err, ErrEndOfCaches) || hasTextCode(err, CCErrorEndOfCaches)
}

func hasTextCode(err error, code string) bool {
	var ce *goerrors.Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.TextCode == code
}
