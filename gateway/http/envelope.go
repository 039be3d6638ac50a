package http

import (
	"encoding/json"
	"net/http"
)

// Envelope states.
const (
	StateCompleted = "COMPLETED"
	StateFailed    = "FAILED"
)

// Messages returned by the alert routes.
const (
	msgInvalidPriority = "Alert priority is invalid or not provided!"
	msgSilenceFailed   = "Unable to silence alert! Priority <> 'alarm'"
	msgNoProperties    = "No properties have been provided!"
	msgAlertActive     = "Cannot remove alert as it is still in abnormal state!"
	msgAlertNotFound   = "Alert not found!"
)

// Envelope is the result body of alert operations.
type Envelope struct {
	State      string `json:"state"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
	ID         string `json:"id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCompleted(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusCreated, Envelope{State: StateCompleted, StatusCode: http.StatusCreated, ID: id})
}

func writeFailed(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{State: StateFailed, StatusCode: status, Message: message})
}
