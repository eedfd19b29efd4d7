package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// JSONResponse writes data as a JSON body with the given status.
func JSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ErrorResponse writes {"error": message}.
func ErrorResponse(w http.ResponseWriter, status int, message string) {
	JSONResponse(w, status, map[string]string{"error": message})
}

// InternalError logs err on the request logger and answers 500. The error
// text is only appended to message when expose is set.
func InternalError(w http.ResponseWriter, r *http.Request, message string, err error, expose bool) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg(message)
	if expose {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	ErrorResponse(w, http.StatusInternalServerError, message)
}
