package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"parking-manager/internal/auth"
	"parking-manager/internal/logging"
	"parking-manager/internal/parking"
	"parking-manager/internal/report"
)

// PersonDirectory is a UserDirectory that can also list everyone in it.
type PersonDirectory interface {
	parking.UserDirectory
	People() []parking.Person
}

type Handler struct {
	manager     *parking.InstrumentedManager
	directory   PersonDirectory
	auth        *auth.Service
	serviceName string
}

func NewHandler(manager *parking.InstrumentedManager, directory PersonDirectory, authService *auth.Service, serviceName string) *Handler {
	return &Handler{
		manager:     manager,
		directory:   directory,
		auth:        authService,
		serviceName: serviceName,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, op, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logging.Warn(ctx, "login rejected", "username", req.Username)
			WriteError(ctx, w, http.StatusUnauthorized, err.Error())
			return
		}
		logging.Error(ctx, "login failed", "error", err)
		WriteError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	logging.Info(ctx, "operator logged in", "operator_id", op.ID, "role", op.Role)
	WriteSuccess(ctx, w, "Login successful", LoginResponse{Token: token, Operator: op})
}

// VerifyToken echoes the operator behind a token that passed JWTAuth.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		WriteError(ctx, w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	op, ok := h.auth.Operator(claims.Username)
	if !ok {
		WriteError(ctx, w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	resp := VerifyResponse{Operator: op}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	WriteSuccess(ctx, w, "Token valid", resp)
}

// GetPersonByDNI looks up who is bringing a vehicle in, with any sessions
// they currently hold.
func (h *Handler) GetPersonByDNI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dni := chi.URLParam(r, "dni")
	if !parking.ValidDNI(dni) {
		WriteError(ctx, w, http.StatusBadRequest, "DNI must have 8 digits")
		return
	}

	person, err := h.directory.FindByDNI(ctx, dni)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	view := PersonView{Person: person, ActiveSessions: []SessionView{}}
	for _, s := range h.manager.ListSessions(ctx, parking.SessionActive) {
		if s.PersonID == person.ID {
			view.ActiveSessions = append(view.ActiveSessions, h.view(r, s))
		}
	}
	WriteSuccess(ctx, w, "Person found", view)
}

func (h *Handler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people := h.directory.People()
	WriteSuccess(r.Context(), w, "", PeopleResponse{Users: people, Total: len(people)})
}

func (h *Handler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var filter parking.SpaceFilter
	if v := query.Get("floor"); v != "" {
		floor, err := parking.ParseFloor(v)
		if err != nil {
			writeDomainError(ctx, w, err)
			return
		}
		filter.Floor = floor
	}
	if v := query.Get("status"); v != "" {
		status := parking.SpaceStatus(v)
		if !status.Valid() {
			WriteError(ctx, w, http.StatusBadRequest, "Invalid space status")
			return
		}
		filter.Status = status
	}
	if v := query.Get("accessible"); v != "" {
		accessible, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(ctx, w, http.StatusBadRequest, "Invalid accessible flag")
			return
		}
		filter.Accessible = &accessible
	}

	spaces := h.manager.ListSpaces(ctx, filter)
	WriteSuccess(ctx, w, "", SpacesResponse{
		Spaces:  spaces,
		Summary: report.Occupancy(spaces),
	})
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := parking.SessionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid session status")
		return
	}

	sessions := h.manager.ListSessions(ctx, status)
	views := make([]SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = h.view(r, s)
	}
	WriteSuccess(ctx, w, "", views)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.manager.Session(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "", h.view(r, session))
}

func (h *Handler) RegisterEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.manager.RegisterEntry(ctx, parking.EntryRequest{
		LicensePlate:            req.LicensePlate,
		PersonID:                req.PersonID,
		DNI:                     req.DNI,
		SpaceID:                 req.SpaceID,
		SpaceCode:               req.SpaceCode,
		RequiresAccessibleSpace: req.RequiresAccessibleSpace,
	})
	if err != nil {
		logging.Info(ctx, "entry rejected", "license_plate", req.LicensePlate, "reason", err.Error())
		writeDomainError(ctx, w, err)
		return
	}

	logging.Info(ctx, "entry registered", "session_id", session.ID, "license_plate", session.LicensePlate)
	WriteSuccessStatus(ctx, w, http.StatusCreated, "Entry registered", h.view(r, session))
}

func (h *Handler) RegisterExit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ExitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		session parking.Session
		err     error
	)
	switch {
	case req.SessionID != "":
		session, err = h.manager.RegisterExit(ctx, req.SessionID, req.ExitTime)
	case req.LicensePlate != "":
		session, err = h.manager.RegisterExitByPlate(ctx, req.LicensePlate, req.ExitTime)
	default:
		WriteError(ctx, w, http.StatusBadRequest, "session_id or license_plate is required")
		return
	}
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	logging.Info(ctx, "exit registered",
		"session_id", session.ID,
		"billed_hours", session.BilledHours,
		"fee", session.Fee.String(),
	)
	WriteSuccess(ctx, w, "Exit registered", h.view(r, session))
}

func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.manager.CancelSession(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	logging.Info(ctx, "session cancelled", "session_id", session.ID)
	WriteSuccess(ctx, w, "Session cancelled", h.view(r, session))
}

func (h *Handler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateSpaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	floor, err := parking.ParseFloor(req.FloorLevel)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	space, err := h.manager.AddSpace(ctx, parking.NewSpace{
		Code:         req.Code,
		Floor:        floor,
		IsAccessible: req.IsAccessible,
	})
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	WriteSuccessStatus(ctx, w, http.StatusCreated, "Space created", space)
}

func (h *Handler) DeleteSpace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := h.manager.RemoveSpace(ctx, id); err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Space deleted", map[string]string{"id": id})
}

func (h *Handler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req MaintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	space, err := h.manager.SetMaintenance(ctx, chi.URLParam(r, "id"), req.Maintenance)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	WriteSuccess(ctx, w, "Space updated", space)
}

// Stats reports over sessions that entered between start and end, both
// inclusive dates in UTC.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var rng report.Range
	if v := query.Get("start"); v != "" {
		start, err := time.Parse(time.DateOnly, v)
		if err != nil {
			WriteError(ctx, w, http.StatusBadRequest, "start must be YYYY-MM-DD")
			return
		}
		rng.From = start
	}
	if v := query.Get("end"); v != "" {
		end, err := time.Parse(time.DateOnly, v)
		if err != nil {
			WriteError(ctx, w, http.StatusBadRequest, "end must be YYYY-MM-DD")
			return
		}
		rng.To = end.Add(24*time.Hour - time.Nanosecond)
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		WriteError(ctx, w, http.StatusBadRequest, "end precedes start")
		return
	}

	spaces := h.manager.ListSpaces(ctx, parking.SpaceFilter{})
	stats := report.Build(h.manager.ListSessions(ctx, ""), len(spaces), rng)
	WriteSuccess(ctx, w, "", stats)
}

func (h *Handler) view(r *http.Request, s parking.Session) SessionView {
	v := SessionView{Session: s}
	if p, err := h.directory.FindByID(r.Context(), s.PersonID); err == nil {
		v.Person = &p
	}
	if space, err := h.manager.Space(s.SpaceID); err == nil {
		v.Space = &SpaceRef{Code: space.Code, Floor: space.Floor, IsAccessible: space.IsAccessible}
	}
	return v
}
