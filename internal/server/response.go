package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/me/mcsched/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, apiErr)
}

// respondSchedulerError maps a scheduler error kind to an HTTP status.
func respondSchedulerError(w http.ResponseWriter, reqID string, err error) {
	status, code := http.StatusInternalServerError, model.ErrInternal
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		status, code = http.StatusBadRequest, model.ErrValidation
	case errors.Is(err, model.ErrUnknownEntity):
		status, code = http.StatusNotFound, model.ErrNotFound
	case errors.Is(err, model.ErrDuplicateIdentity),
		errors.Is(err, model.ErrIllegalStateTransition),
		errors.Is(err, model.ErrOperationNotPermitted):
		status, code = http.StatusConflict, model.ErrConflict
	case errors.Is(err, model.ErrUnsatisfiableRequirement):
		status, code = http.StatusUnprocessableEntity, model.ErrUnsatisfiable
	}
	respondError(w, reqID, status, &model.APIError{Code: code, Message: err.Error()})
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, reqID string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, apiErr *model.APIError) {
	resp := model.Response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
