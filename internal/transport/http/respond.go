package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"vatgate/internal/vat"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates the vat error taxonomy to HTTP statuses: bad input
// is the client's fault, registry rejections and transport failures are
// upstream problems, everything else is ours.
func writeError(w http.ResponseWriter, err error) {
	var e *vat.Error
	if !errors.As(err, &e) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: string(vat.CategoryUnknown), Message: err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch e.Category {
	case vat.CategoryValidation:
		status = http.StatusUnprocessableEntity
	case vat.CategoryAPI:
		status = http.StatusBadGateway
	case vat.CategoryHTTP:
		if e.Code == vat.CodeTimeout {
			status = http.StatusGatewayTimeout
		} else {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, errorResponse{
		Error: string(e.Category), Code: e.Code, Message: e.Message})
}

func decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "bad_request", Message: "malformed JSON body"})
		return req, false
	}
	return req, true
}
