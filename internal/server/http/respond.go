package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/ecoquest/internal/convert"
	"github.com/and161185/ecoquest/internal/errs"
	"go.uber.org/zap"
)

const maxJSONBody = 12 << 20 // base64 images inflate by a third

var kindStatus = map[errs.Kind]int{
	errs.KindInvalidInput:       http.StatusBadRequest,
	errs.KindNotFound:           http.StatusNotFound,
	errs.KindDuplicateImage:     http.StatusConflict,
	errs.KindAlreadyExists:      http.StatusConflict,
	errs.KindPartialFailure:     http.StatusMultiStatus,
	errs.KindStorageUnavailable: http.StatusServiceUnavailable,
	errs.KindUnauthorized:       http.StatusUnauthorized,
	errs.KindRateLimited:        http.StatusTooManyRequests,
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	if code, ok := kindStatus[errs.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(kind, msg string) convert.ErrorView {
	return convert.ErrorView{ErrorKind: kind, Message: msg}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, convert.ViewError(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errs.Invalid("request body too large")
		}
		return errs.Invalid("malformed JSON body: %v", err)
	}
	return nil
}
