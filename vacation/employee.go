package vacation

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/generic"
)

// RankTrigger schedules an asynchronous rank recompute.
type RankTrigger interface {
	Trigger()
}

// EmployeeService handles employee-year mutations. Every mutation that can
// change a ranking input triggers a recompute; bookings never do.
type EmployeeService struct {
	Store  generic.TxStore
	Ranks  RankTrigger
	Audit  *Auditor
	Logger logrus.FieldLogger
}

func (s *EmployeeService) Create(ctx context.Context, e generic.Employee) (generic.Employee, error) {
	if err := prepare(&e); err != nil {
		return generic.Employee{}, err
	}

	created, err := s.Store.CreateEmployee(ctx, e)
	if err != nil {
		return generic.Employee{}, err
	}

	s.Audit.Record(ctx, generic.AuditEmployeeCreated, created.Key(), map[string]any{
		"name":     created.Name,
		"category": created.Category,
	})
	logger(s.Logger).WithFields(logrus.Fields{"key": created.Key().String(), "category": created.Category}).
		Info("employee created")
	s.triggerRanks()
	return created, nil
}

// Update rewrites an employee-year and recomputes its derived fields. The
// stored rank is kept until the next recompute.
func (s *EmployeeService) Update(ctx context.Context, e generic.Employee) (generic.Employee, error) {
	if err := prepare(&e); err != nil {
		return generic.Employee{}, err
	}
	if err := s.Store.UpdateEmployee(ctx, e); err != nil {
		return generic.Employee{}, err
	}
	updated, err := s.Store.GetEmployee(ctx, e.Key())
	if err != nil {
		return generic.Employee{}, err
	}

	s.Audit.Record(ctx, generic.AuditEmployeeUpdated, updated.Key(), map[string]any{
		"name":     updated.Name,
		"category": updated.Category,
	})
	s.triggerRanks()
	return updated, nil
}

// Delete removes the registration's employee-years (and their periods) for
// the given years in one transaction.
func (s *EmployeeService) Delete(ctx context.Context, id generic.RegistrationID, years []int) (int, error) {
	if len(years) == 0 {
		return 0, fmt.Errorf("%w: at least one year is required", generic.ErrInvalidEmployee)
	}

	var deleted int
	err := s.Store.WithTx(ctx, func(tx generic.Store) error {
		n, err := tx.DeleteEmployees(ctx, id, years)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s in %v", generic.ErrEmployeeNotFound, id, years)
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Audit.Record(ctx, generic.AuditEmployeeDeleted, generic.EmployeeKey{RegistrationID: id},
		map[string]any{"years": years, "deleted": deleted})
	logger(s.Logger).WithFields(logrus.Fields{"registration": id, "years": years}).Info("employee deleted")
	s.triggerRanks()
	return deleted, nil
}

func (s *EmployeeService) Get(ctx context.Context, key generic.EmployeeKey) (generic.Employee, error) {
	return s.Store.GetEmployee(ctx, key)
}

// List returns employees ordered by group, then rank (unranked last).
func (s *EmployeeService) List(ctx context.Context, filter generic.EmployeeFilter) ([]generic.Employee, error) {
	employees, err := s.Store.FindEmployees(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	sortByRank(employees)
	return employees, nil
}

// Years lists the reference years of a registration, newest first.
func (s *EmployeeService) Years(ctx context.Context, id generic.RegistrationID) ([]int, error) {
	employees, err := s.Store.FindEmployees(ctx, generic.EmployeeFilter{RegistrationID: &id})
	if err != nil {
		return nil, fmt.Errorf("failed to load years of %s: %w", id, err)
	}
	years := distinctYears(employees)
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// Pending lists employees of the year without any booked period.
func (s *EmployeeService) Pending(ctx context.Context, year int) ([]generic.Employee, error) {
	employees, err := s.Store.FindEmployees(ctx, generic.EmployeeFilter{ReferenceYear: &year})
	if err != nil {
		return nil, fmt.Errorf("failed to load employees of %d: %w", year, err)
	}
	periods, err := s.Store.FindVacationPeriods(ctx, generic.PeriodFilter{ReferenceYear: &year})
	if err != nil {
		return nil, fmt.Errorf("failed to load periods of %d: %w", year, err)
	}

	booked := make(map[generic.RegistrationID]bool, len(periods))
	for _, p := range periods {
		booked[p.RegistrationID] = true
	}

	var pending []generic.Employee
	for _, e := range employees {
		if !booked[e.RegistrationID] {
			pending = append(pending, e)
		}
	}
	sortByRank(pending)
	return pending, nil
}

// GroupClassification is one group's ranked list for a year.
type GroupClassification struct {
	Group     generic.Group      `json:"group"`
	Employees []generic.Employee `json:"employees"`
}

// Classification groups the employees of a year by category group, each in
// rank order.
func (s *EmployeeService) Classification(ctx context.Context, year int) ([]GroupClassification, error) {
	out := make([]GroupClassification, 0, len(generic.Groups))
	for _, g := range generic.Groups {
		y := year
		employees, err := s.Store.FindEmployees(ctx, generic.EmployeeFilter{
			Categories:    g.Categories(),
			ReferenceYear: &y,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load group %s: %w", g, err)
		}
		sortByRank(employees)
		out = append(out, GroupClassification{Group: g, Employees: employees})
	}
	return out, nil
}

func (s *EmployeeService) triggerRanks() {
	if s.Ranks != nil {
		s.Ranks.Trigger()
	}
}

// prepare checks the category and computes the derived fields.
func prepare(e *generic.Employee) error {
	if e.RegistrationID == "" || e.Name == "" {
		return fmt.Errorf("%w: registration id and name are required", generic.ErrInvalidEmployee)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", generic.ErrUnknownCategory, e.Category)
	}
	if e.ChildCount < 0 {
		return fmt.Errorf("%w: child count cannot be negative", generic.ErrInvalidEmployee)
	}
	return e.Derive()
}

func sortByRank(employees []generic.Employee) {
	groupIndex := make(map[generic.Group]int, len(generic.Groups))
	for i, g := range generic.Groups {
		groupIndex[g] = i
	}
	sort.SliceStable(employees, func(i, j int) bool {
		a, b := employees[i], employees[j]
		if a.ReferenceYear != b.ReferenceYear {
			return a.ReferenceYear > b.ReferenceYear
		}
		if ga, gb := groupIndex[a.Group()], groupIndex[b.Group()]; ga != gb {
			return ga < gb
		}
		switch {
		case a.Rank == nil:
			return false
		case b.Rank == nil:
			return true
		default:
			return *a.Rank < *b.Rank
		}
	})
}
