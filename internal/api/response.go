// Package api defines the wire envelope shared by every endpoint.
//
// All operations answer with the same triple: a value payload (possibly
// empty), a success flag, and a human-readable message. Failures are carried
// inside the envelope; no handler lets an error escape as a bare status body.
package api

import (
	"encoding/json"
	"net/http"
)

// Result is the value/success/message triple returned by every operation.
type Result struct {
	Value   any    `json:"value"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OutcomeMFA is the value returned when a login requires step-up
// verification.
const OutcomeMFA = "MFA"

// Write sends an explicit envelope, for outcomes that are neither plain
// success nor plain failure (e.g. a login that requires MFA).
func Write(w http.ResponseWriter, status int, res Result) {
	writeJSON(w, status, res)
}

func WriteResult(w http.ResponseWriter, status int, value any, message string) {
	writeJSON(w, status, Result{Value: value, Success: true, Message: message})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Result{Value: "", Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body Result) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
