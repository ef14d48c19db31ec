package middleware

import (
	"encoding/json"
	"net/http"

	"swapgraph/internal/apierror"
)

// errorEnvelope is the universal error body spec §7 mandates.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeError renders err as the §7 envelope, deriving the HTTP status from
// its code. A plain error (not *apierror.Error) renders as SERVER_ERROR
// without leaking its message.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierror.As(err)
	if !ok {
		apiErr = apierror.New(apierror.ServerError, "internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Code:    string(apiErr.Code),
		Message: apiErr.Message,
		Details: apiErr.Details,
	}})
}

// WriteError is the package-external entry point for handlers outside this
// package that need to render the same envelope.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err)
}

// WriteJSON renders v as a JSON body with status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
