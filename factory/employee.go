/*
Package factory turns admin input into domain records.

PURPOSE:
  Admin forms post either JSON or HTML form values (checkboxes arrive as
  "on"). The factory normalizes both into one input struct, validates it with
  struct tags, and builds generic.Employee with its derived fields already
  computed, or a vacation.BookingRequest with parsed dates.

VALIDATION:
  Struct-tag rules via go-playground/validator. Failures come back as a
  *InputError that maps json field names to messages and unwraps to
  generic.ErrInvalidEmployee (employee input) or generic.ErrInvalidPeriod
  (booking input), so the HTTP layer classifies them as client errors.

USAGE:
  f := factory.NewEmployeeFactory()
  employee, err := f.ParseJSON(body)
  employee, err := f.FromForm(r.PostForm)
  req, err := f.BookingFromJSON(body)

SEE ALSO:
  - vacation/employee.go: consumes the built Employee
  - api/handlers.go: calls the factory for POST/PUT bodies
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/vacation-engine/generic"
	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

type EmployeeInput struct {
	RegistrationID  string `json:"registration_id" validate:"required,max=32"`
	ReferenceYear   int    `json:"reference_year" validate:"required,gte=1900,lte=2200"`
	Name            string `json:"name" validate:"required,max=200"`
	Category        string `json:"category" validate:"required,oneof=IPC IPC-P EPC EPC-P DPC DPC-P"`
	Pregnant        bool   `json:"pregnant"`
	ChildCount      int    `json:"child_count" validate:"gte=0,lte=30"`
	Student         bool   `json:"student"`
	TwoJobs         bool   `json:"two_jobs"`
	SpouseInService bool   `json:"spouse_in_service"`
	HireDate        string `json:"hire_date" validate:"required,datetime=2006-01-02"`
	BirthDate       string `json:"birth_date" validate:"required,datetime=2006-01-02"`
}

func (in *EmployeeInput) Normalize() {
	in.RegistrationID = strings.TrimSpace(in.RegistrationID)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToUpper(strings.TrimSpace(in.Category))
	in.HireDate = strings.TrimSpace(in.HireDate)
	in.BirthDate = strings.TrimSpace(in.BirthDate)
}

type PeriodInput struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

// BookingInput is a validateAndBook or edit request. An empty period list is
// only meaningful on the edit path.
type BookingInput struct {
	RegistrationID string        `json:"registration_id" validate:"required"`
	ReferenceYear  int           `json:"reference_year" validate:"required,gte=1900,lte=2200"`
	Split          string        `json:"split"`
	Periods        []PeriodInput `json:"periods" validate:"max=3,dive"`
}

// =============================================================================
// ERRORS
// =============================================================================

// InputError maps json field names to validation messages.
type InputError struct {
	Fields map[string]string
	kind   error
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%s: %s", e.kind, strings.Join(parts, "; "))
}

func (e *InputError) Unwrap() error { return e.kind }

// =============================================================================
// EMPLOYEE FACTORY
// =============================================================================

type EmployeeFactory struct {
	validate *validator.Validate
}

func NewEmployeeFactory() *EmployeeFactory {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &EmployeeFactory{validate: v}
}

// Build validates the input and returns an Employee with derived fields set.
func (f *EmployeeFactory) Build(in EmployeeInput) (generic.Employee, error) {
	in.Normalize()
	if err := f.check(in, generic.ErrInvalidEmployee); err != nil {
		return generic.Employee{}, err
	}

	hire, err := generic.ParseDate(in.HireDate)
	if err != nil {
		return generic.Employee{}, fieldError(generic.ErrInvalidEmployee, "hire_date", err.Error())
	}
	birth, err := generic.ParseDate(in.BirthDate)
	if err != nil {
		return generic.Employee{}, fieldError(generic.ErrInvalidEmployee, "birth_date", err.Error())
	}
	if !birth.Before(hire) {
		return generic.Employee{}, fieldError(generic.ErrInvalidEmployee, "birth_date", "must be before hire_date")
	}

	e := generic.Employee{
		RegistrationID:  generic.RegistrationID(in.RegistrationID),
		ReferenceYear:   in.ReferenceYear,
		Name:            in.Name,
		Category:        generic.Category(in.Category),
		Pregnant:        in.Pregnant,
		ChildCount:      in.ChildCount,
		Student:         in.Student,
		TwoJobs:         in.TwoJobs,
		SpouseInService: in.SpouseInService,
		HireDate:        hire,
		BirthDate:       birth,
	}
	if err := e.Derive(); err != nil {
		return generic.Employee{}, err
	}
	return e, nil
}

func (f *EmployeeFactory) ParseJSON(data []byte) (generic.Employee, error) {
	var in EmployeeInput
	if err := json.Unmarshal(data, &in); err != nil {
		return generic.Employee{}, fmt.Errorf("%w: invalid JSON: %v", generic.ErrInvalidEmployee, err)
	}
	return f.Build(in)
}

// FromForm reads HTML form values. Checkboxes are true when present with
// "on", "true" or "1".
func (f *EmployeeFactory) FromForm(values url.Values) (generic.Employee, error) {
	in := EmployeeInput{
		RegistrationID:  values.Get("registration_id"),
		Name:            values.Get("name"),
		Category:        values.Get("category"),
		Pregnant:        checkbox(values.Get("pregnant")),
		Student:         checkbox(values.Get("student")),
		TwoJobs:         checkbox(values.Get("two_jobs")),
		SpouseInService: checkbox(values.Get("spouse_in_service")),
		HireDate:        values.Get("hire_date"),
		BirthDate:       values.Get("birth_date"),
	}

	var err error
	if in.ReferenceYear, err = formInt(values, "reference_year"); err != nil {
		return generic.Employee{}, err
	}
	if in.ChildCount, err = formInt(values, "child_count"); err != nil {
		return generic.Employee{}, err
	}
	return f.Build(in)
}

// =============================================================================
// BOOKING INPUT
// =============================================================================

// Booking validates the input and parses it into a request.
func (f *EmployeeFactory) Booking(in BookingInput) (vacation.BookingRequest, error) {
	in.RegistrationID = strings.TrimSpace(in.RegistrationID)
	in.Split = strings.TrimSpace(in.Split)
	if err := f.check(in, generic.ErrInvalidPeriod); err != nil {
		return vacation.BookingRequest{}, err
	}
	if len(in.Periods) > 0 && in.Split == "" {
		return vacation.BookingRequest{}, fieldError(generic.ErrInvalidPeriod, "split", "is required")
	}

	req := vacation.BookingRequest{
		Key: generic.EmployeeKey{
			RegistrationID: generic.RegistrationID(in.RegistrationID),
			ReferenceYear:  in.ReferenceYear,
		},
		Split:   in.Split,
		Periods: make([]generic.DateRange, len(in.Periods)),
	}
	for i, p := range in.Periods {
		start, err := generic.ParseDate(p.Start)
		if err != nil {
			return vacation.BookingRequest{}, fieldError(generic.ErrInvalidPeriod, fmt.Sprintf("periods[%d].start", i), err.Error())
		}
		end, err := generic.ParseDate(p.End)
		if err != nil {
			return vacation.BookingRequest{}, fieldError(generic.ErrInvalidPeriod, fmt.Sprintf("periods[%d].end", i), err.Error())
		}
		r := generic.DateRange{Start: start, End: end}
		if err := r.Check(); err != nil {
			return vacation.BookingRequest{}, fieldError(generic.ErrInvalidPeriod, fmt.Sprintf("periods[%d]", i), err.Error())
		}
		req.Periods[i] = r
	}
	return req, nil
}

func (f *EmployeeFactory) BookingFromJSON(data []byte) (vacation.BookingRequest, error) {
	var in BookingInput
	if err := json.Unmarshal(data, &in); err != nil {
		return vacation.BookingRequest{}, fmt.Errorf("%w: invalid JSON: %v", generic.ErrInvalidPeriod, err)
	}
	return f.Booking(in)
}

// =============================================================================
// HELPERS
// =============================================================================

func (f *EmployeeFactory) check(in any, kind error) error {
	err := f.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", kind, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
	}
	return &InputError{Fields: fields, kind: kind}
}

// fieldPath drops the struct name from the namespace: "BookingInput.periods[0].start"
// becomes "periods[0].start".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must have at most " + fe.Param() + " entries or characters"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func fieldError(kind error, field, msg string) error {
	return &InputError{Fields: map[string]string{field: msg}, kind: kind}
}

func checkbox(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func formInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fieldError(generic.ErrInvalidEmployee, key, "must be a whole number")
	}
	return n, nil
}
