package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"parking-manager/internal/auth"
	"parking-manager/internal/logging"
	"parking-manager/internal/parking"
	"parking-manager/internal/report"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string        `json:"token"`
	Operator auth.Operator `json:"operator"`
}

type VerifyResponse struct {
	Operator  auth.Operator `json:"operator"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// PersonView is a directory entry with the sessions it holds right now.
type PersonView struct {
	parking.Person
	ActiveSessions []SessionView `json:"active_sessions"`
}

type PeopleResponse struct {
	Users []parking.Person `json:"users"`
	Total int              `json:"total"`
}

type EntryRequest struct {
	LicensePlate            string `json:"license_plate"`
	DNI                     string `json:"dni"`
	PersonID                int64  `json:"person_id"`
	SpaceID                 string `json:"space_id"`
	SpaceCode               string `json:"space_code"`
	RequiresAccessibleSpace bool   `json:"requires_accessible_space"`
}

type ExitRequest struct {
	SessionID    string     `json:"session_id"`
	LicensePlate string     `json:"license_plate"`
	ExitTime     *time.Time `json:"exit_time"`
}

type CreateSpaceRequest struct {
	Code         string `json:"code"`
	FloorLevel   string `json:"floor_level"`
	IsAccessible bool   `json:"is_accessible"`
}

type MaintenanceRequest struct {
	Maintenance bool `json:"maintenance"`
}

type SpaceRef struct {
	Code         string        `json:"code"`
	Floor        parking.Floor `json:"floor_level"`
	IsAccessible bool          `json:"is_accessible"`
}

// SessionView is a session with its person and space resolved.
type SessionView struct {
	parking.Session
	Person *parking.Person `json:"person,omitempty"`
	Space  *SpaceRef       `json:"space,omitempty"`
}

type SpacesResponse struct {
	Spaces  []parking.Space         `json:"spaces"`
	Summary report.OccupancySummary `json:"summary"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{RequestID: logging.RequestID(ctx)}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}
	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteSuccessStatus(ctx, w, http.StatusOK, message, data)
}

func WriteSuccessStatus(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}

// statusFor maps a manager error to an HTTP status. Anything that is not a
// business-rule rejection is a server fault.
func statusFor(err error) int {
	switch {
	case parking.IsValidation(err):
		return http.StatusBadRequest
	case parking.IsNotFound(err):
		return http.StatusNotFound
	case parking.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error(ctx, "request failed", "error", err)
		WriteError(ctx, w, status, "Internal server error")
		return
	}
	WriteError(ctx, w, status, err.Error())
}
