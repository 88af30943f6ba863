/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Employee and booking
  request bodies are factory.EmployeeInput / factory.BookingInput so that
  field validation lives in one place; this file holds the envelopes.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: Uses these types
  - factory/employee.go: EmployeeInput, BookingInput
*/
package api

import (
	"github.com/warp/vacation-engine/generic"
	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO is an employee-year plus its resolved group.
type EmployeeDTO struct {
	generic.Employee
	Group             generic.Group `json:"group"`
	AcquisitionEndDMY string        `json:"acquisition_end_display"`
}

// PeriodDTO is one booked period.
type PeriodDTO struct {
	Sequence int          `json:"sequence"`
	Start    generic.Date `json:"start"`
	End      generic.Date `json:"end"`
	Days     int          `json:"days"`
}

// BookingResponse is returned by create, edit and preview.
type BookingResponse struct {
	OK       bool              `json:"ok"`
	Problems []generic.Problem `json:"problems,omitempty"`
	Messages []string          `json:"messages,omitempty"`
	Periods  []PeriodDTO       `json:"periods,omitempty"`
}

// DeleteResponse reports how many rows a delete or reset touched.
type DeleteResponse struct {
	RegistrationID generic.RegistrationID `json:"registration_id"`
	Years          []int                  `json:"years"`
	Deleted        int                    `json:"deleted"`
}

// MigrateRequest is the body of POST /api/admin/migrate.
type MigrateRequest struct {
	SourceYear int `json:"source_year"`
	TargetYear int `json:"target_year"`
}

// SettingsRequest is the body of PUT /api/settings.
type SettingsRequest struct {
	Quotas map[generic.Group]generic.GroupQuota `json:"quotas"`
}

// ClassificationDTO is one group's ranked list.
type ClassificationDTO struct {
	Group     generic.Group `json:"group"`
	Employees []EmployeeDTO `json:"employees"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error    string            `json:"error"`
	Details  any               `json:"details,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Problems []generic.Problem `json:"problems,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e generic.Employee) EmployeeDTO {
	return EmployeeDTO{
		Employee:          e,
		Group:             e.Group(),
		AcquisitionEndDMY: e.AcquisitionWindow.End.FormatDMY(),
	}
}

func toEmployeeDTOs(employees []generic.Employee) []EmployeeDTO {
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	return dtos
}

func toPeriodDTOs(periods []generic.VacationPeriod) []PeriodDTO {
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = PeriodDTO{
			Sequence: p.Sequence,
			Start:    p.Range.Start,
			End:      p.Range.End,
			Days:     p.Range.DayCount(),
		}
	}
	return dtos
}

func toBookingResponse(res vacation.ValidationResult) BookingResponse {
	return BookingResponse{
		OK:       res.OK,
		Problems: res.Problems,
		Messages: res.Messages(),
	}
}

func toClassificationDTOs(groups []vacation.GroupClassification) []ClassificationDTO {
	dtos := make([]ClassificationDTO, len(groups))
	for i, g := range groups {
		dtos[i] = ClassificationDTO{Group: g.Group, Employees: toEmployeeDTOs(g.Employees)}
	}
	return dtos
}
