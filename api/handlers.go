/*
handlers.go - HTTP API handlers for the vacation engine

PURPOSE:
  Exposes the vacation services via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the vacation package.

ENDPOINTS:
  Employees:
    GET    /api/employees?year=&category=        List in rank order
    POST   /api/employees                        Create (JSON or form)
    GET    /api/employees/pending?year=          Employees without bookings
    GET    /api/employees/{registration}/years   Distinct reference years
    GET    /api/employees/{registration}/{year}  Get one employee-year
    PUT    /api/employees/{registration}/{year}  Update
    DELETE /api/employees/{registration}?years=  Delete years

  Vacations:
    POST   /api/vacations                        Book (create path)
    POST   /api/vacations/preview?edit=          Validate only
    GET    /api/vacations/{registration}/{year}  Booked periods
    PUT    /api/vacations/{registration}/{year}  Edit (own periods excluded)
    DELETE /api/vacations/{registration}?years=  Reset

  Engine:
    GET    /api/capacity                         Pre-flight capacity check
    GET    /api/classification?year=             Ranked lists per group
    POST   /api/classification/recompute         Synchronous rank recompute
    GET    /api/calendar?year=&category=         Year calendar

  Admin:
    GET/PUT /api/settings                        Quota record
    POST   /api/admin/migrate                    Copy a year into another
    GET    /api/audit?registration=&limit=       Audit trail

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (also the audit log)
  - Factory: admin input to domain records
  - One service per vacation concern
  - Ranks: background rank scheduler

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, malformed split, unknown category
  - 404: Employee or settings not found
  - 409: Duplicate employee-year, booking already exists
  - 422: Business-rule rejection, with the complete problem list
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/factory"
	"github.com/warp/vacation-engine/generic"
	"github.com/warp/vacation-engine/vacation"
)

const maxBodyBytes = 1 << 20

// Store is everything the HTTP layer needs from persistence.
type Store interface {
	generic.TxStore
	generic.AuditLog
	Reset(ctx context.Context) error
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Factory *factory.EmployeeFactory
	Logger  logrus.FieldLogger

	Employees *vacation.EmployeeService
	Bookings  *vacation.BookingService
	Capacity  *vacation.CapacityChecker
	Calendar  *vacation.CalendarService
	Settings  *vacation.SettingsService
	Migration *vacation.MigrationService
	Ranks     *RankScheduler

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the services over one store. A nil scheduler gets an
// unstarted one, which still serves synchronous recomputes.
func NewHandler(store Store, ranks *RankScheduler, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	audit := &vacation.Auditor{Log: store, Logger: logger}
	if ranks == nil {
		ranks = NewRankScheduler(&vacation.Ranker{Store: store, Audit: audit, Logger: logger}, 0, logger)
	}

	return &Handler{
		Store:     store,
		Factory:   factory.NewEmployeeFactory(),
		Logger:    logger,
		Employees: &vacation.EmployeeService{Store: store, Ranks: ranks, Audit: audit, Logger: logger},
		Bookings:  &vacation.BookingService{Store: store, Audit: audit, Logger: logger},
		Capacity:  &vacation.CapacityChecker{Store: store, Logger: logger},
		Calendar:  &vacation.CalendarService{Store: store},
		Settings:  &vacation.SettingsService{Store: store, Audit: audit, Logger: logger},
		Migration: &vacation.MigrationService{Store: store, Ranks: ranks, Audit: audit, Logger: logger},
		Ranks:     ranks,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns employees in rank order.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	var filter generic.EmployeeFilter

	year, ok, err := queryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	if ok {
		filter.ReferenceYear = &year
	}

	categories, err := queryCategories(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category", err)
		return
	}
	filter.Categories = categories

	employees, err := h.Employees.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// CreateEmployee accepts a JSON body or an HTML form post.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var (
		emp generic.Employee
		err error
	)
	if isForm(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form body", err)
			return
		}
		emp, err = h.Factory.FromForm(r.PostForm)
	} else {
		var body []byte
		body, err = readBody(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		emp, err = h.Factory.ParseJSON(body)
	}
	if err != nil {
		h.writeServiceError(w, "Invalid employee", err)
		return
	}

	created, err := h.Employees.Create(r.Context(), emp)
	if err != nil {
		h.writeServiceError(w, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(created))
}

// PendingEmployees lists employees of a year without booked periods.
func (h *Handler) PendingEmployees(w http.ResponseWriter, r *http.Request) {
	year, err := requireQueryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	employees, err := h.Employees.Pending(r.Context(), year)
	if err != nil {
		h.writeServiceError(w, "Failed to list pending employees", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTOs(employees))
}

// EmployeeYears lists the reference years of a registration.
func (h *Handler) EmployeeYears(w http.ResponseWriter, r *http.Request) {
	id := generic.RegistrationID(chi.URLParam(r, "registration"))

	years, err := h.Employees.Years(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to list years", err)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"registration_id": id, "years": years})
}

// GetEmployee returns one employee-year.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	emp, err := h.Employees.Get(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// UpdateEmployee rewrites an employee-year. The path is the key; key fields
// in the body are ignored.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	var in factory.EmployeeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in.RegistrationID = string(key.RegistrationID)
	in.ReferenceYear = key.ReferenceYear

	emp, err := h.Factory.Build(in)
	if err != nil {
		h.writeServiceError(w, "Invalid employee", err)
		return
	}

	updated, err := h.Employees.Update(r.Context(), emp)
	if err != nil {
		h.writeServiceError(w, "Failed to update employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(updated))
}

// DeleteEmployee removes the employee-years listed in ?years= and their periods.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := generic.RegistrationID(chi.URLParam(r, "registration"))
	years, err := queryYears(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid years", err)
		return
	}

	n, err := h.Employees.Delete(r.Context(), id, years)
	if err != nil {
		h.writeServiceError(w, "Failed to delete employee", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{RegistrationID: id, Years: years, Deleted: n})
}

// =============================================================================
// VACATION HANDLERS
// =============================================================================

// CreateBooking is validateAndBook: 201 on success, 422 with every problem
// on a business-rule rejection.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Factory.BookingFromJSON(body)
	if err != nil {
		h.writeServiceError(w, "Invalid booking", err)
		return
	}

	res, err := h.Bookings.Book(r.Context(), req)
	h.writeBookingResult(w, r, req.Key, res, err, http.StatusCreated)
}

// UpdateBooking is the edit variant. The path is the key.
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	var in factory.BookingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in.RegistrationID = string(key.RegistrationID)
	in.ReferenceYear = key.ReferenceYear

	req, err := h.Factory.Booking(in)
	if err != nil {
		h.writeServiceError(w, "Invalid booking", err)
		return
	}

	res, err := h.Bookings.Rebook(r.Context(), req)
	h.writeBookingResult(w, r, key, res, err, http.StatusOK)
}

// PreviewBooking validates without writing. Always 200 when validation ran.
func (h *Handler) PreviewBooking(w http.ResponseWriter, r *http.Request) {
	edit, _ := strconv.ParseBool(r.URL.Query().Get("edit"))

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req, err := h.Factory.BookingFromJSON(body)
	if err != nil {
		h.writeServiceError(w, "Invalid booking", err)
		return
	}

	res, err := h.Bookings.Preview(r.Context(), req, edit)
	if err != nil {
		h.writeServiceError(w, "Failed to validate booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(res))
}

// GetBookings returns the booked periods of an employee-year.
func (h *Handler) GetBookings(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	periods, err := h.Bookings.Periods(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, "Failed to get bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTOs(periods))
}

// ResetBookings deletes the periods of a registration in ?years=.
func (h *Handler) ResetBookings(w http.ResponseWriter, r *http.Request) {
	id := generic.RegistrationID(chi.URLParam(r, "registration"))
	years, err := queryYears(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid years", err)
		return
	}
	if len(years) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid years", errors.New("at least one year is required"))
		return
	}

	n, err := h.Bookings.Reset(r.Context(), id, years)
	if err != nil {
		h.writeServiceError(w, "Failed to reset bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{RegistrationID: id, Years: years, Deleted: n})
}

func (h *Handler) writeBookingResult(w http.ResponseWriter, r *http.Request, key generic.EmployeeKey,
	res vacation.ValidationResult, err error, okStatus int) {
	if err != nil {
		h.writeServiceError(w, "Failed to book vacation", err)
		return
	}
	if !res.OK {
		writeJSON(w, http.StatusUnprocessableEntity, toBookingResponse(res))
		return
	}

	periods, err := h.Bookings.Periods(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, "Failed to read stored periods", err)
		return
	}
	resp := toBookingResponse(res)
	resp.Periods = toPeriodDTOs(periods)
	writeJSON(w, okStatus, resp)
}

// =============================================================================
// ENGINE HANDLERS
// =============================================================================

// CheckCapacity runs the capacity checker for one candidate range.
// Query: category, start, end, year (defaults to the start year), exclude.
func (h *Handler) CheckCapacity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	category, err := generic.ParseCategory(q.Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category", err)
		return
	}
	start, err := generic.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
		return
	}
	end, err := generic.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date (use YYYY-MM-DD)", err)
		return
	}

	query := vacation.CapacityQuery{
		Category:      category,
		Range:         generic.DateRange{Start: start, End: end},
		ReferenceYear: start.Year,
	}
	year, ok, err := queryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	if ok {
		query.ReferenceYear = year
	}
	if exclude := strings.TrimSpace(q.Get("exclude")); exclude != "" {
		id := generic.RegistrationID(exclude)
		query.Exclude = &id
	}

	res, err := h.Capacity.Check(r.Context(), query)
	if err != nil {
		h.writeServiceError(w, "Failed to check capacity", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Classification returns the ranked lists of a year, one per group.
func (h *Handler) Classification(w http.ResponseWriter, r *http.Request) {
	year, err := requireQueryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	groups, err := h.Employees.Classification(r.Context(), year)
	if err != nil {
		h.writeServiceError(w, "Failed to load classification", err)
		return
	}
	writeJSON(w, http.StatusOK, toClassificationDTOs(groups))
}

// RecomputeRanks recomputes every (group, year) synchronously.
func (h *Handler) RecomputeRanks(w http.ResponseWriter, r *http.Request) {
	report, err := h.Ranks.RunNow(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to recompute ranks", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// YearCalendar returns who is away on each day of a calendar year.
func (h *Handler) YearCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := requireQueryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	categories, err := queryCategories(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid category", err)
		return
	}

	cal, err := h.Calendar.Year(r.Context(), year, categories)
	if err != nil {
		h.writeServiceError(w, "Failed to build calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.Get(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to read settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	settings, err := h.Settings.Update(r.Context(), generic.Settings{Quotas: req.Quotas})
	if err != nil {
		h.writeServiceError(w, "Failed to update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// MigrateYear copies every employee of one reference year into another.
func (h *Handler) MigrateYear(w http.ResponseWriter, r *http.Request) {
	var req MigrateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.SourceYear == 0 || req.TargetYear == 0 {
		writeError(w, http.StatusBadRequest, "source_year and target_year are required", nil)
		return
	}

	result, err := h.Migration.Migrate(r.Context(), req.SourceYear, req.TargetYear)
	if err != nil {
		h.writeServiceError(w, "Failed to migrate year", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListAudit returns audit entries, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	filter := generic.AuditFilter{Limit: 100}
	if id := strings.TrimSpace(r.URL.Query().Get("registration")); id != "" {
		reg := generic.RegistrationID(id)
		filter.RegistrationID = &reg
	}
	limit, ok, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	if ok {
		filter.Limit = limit
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "Failed to query audit log", err)
		return
	}
	if entries == nil {
		entries = []generic.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var inputErr *factory.InputError
	if errors.As(err, &inputErr) {
		resp.Fields = inputErr.Fields
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var validationErr *generic.ValidationError
	if errors.As(err, &validationErr) {
		resp.Problems = validationErr.Problems
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	switch {
	case errors.Is(err, generic.ErrDuplicateEmployee), errors.Is(err, generic.ErrAlreadyBooked):
		writeJSON(w, http.StatusConflict, resp)
	case generic.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, resp)
	case generic.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		h.Logger.WithError(err).Error(message)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: message})
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func isForm(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

// pathKey reads {registration}/{year}.
func pathKey(r *http.Request) (generic.EmployeeKey, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return generic.EmployeeKey{}, fmt.Errorf("year must be a number: %w", err)
	}
	return generic.EmployeeKey{
		RegistrationID: generic.RegistrationID(chi.URLParam(r, "registration")),
		ReferenceYear:  year,
	}, nil
}

func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number", name)
	}
	return n, true, nil
}

func requireQueryInt(r *http.Request, name string) (int, error) {
	n, ok, err := queryInt(r, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	return n, nil
}

// queryYears accepts ?years=2024,2025 and repeated ?years= parameters.
func queryYears(r *http.Request) ([]int, error) {
	var years []int
	for _, raw := range r.URL.Query()["years"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			y, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid year %q", part)
			}
			years = append(years, y)
		}
	}
	return years, nil
}

// queryCategories accepts ?category=IPC,EPC-P and repeated parameters.
func queryCategories(r *http.Request) ([]generic.Category, error) {
	var categories []generic.Category
	for _, raw := range r.URL.Query()["category"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			c, err := generic.ParseCategory(part)
			if err != nil {
				return nil, err
			}
			categories = append(categories, c)
		}
	}
	return categories, nil
}
