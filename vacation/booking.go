/*
booking.go - validateAndBook and its edit variant

PURPOSE:
  Runs the validator and, only on a clean result, replaces the periods of the
  employee-year. Validation and the write share one transaction, so a
  rejected request never commits and two bookings against the same store
  are serialized by the store's transaction boundary.

OUTCOMES:
  (result.OK == true,  nil)  periods stored
  (result.OK == false, nil)  business-rule rejection, nothing stored
  (zero result,        err)  not found, malformed input or storage failure

Bookings never trigger a rank recompute.

SEE ALSO:
  - validator.go: the rules
  - generic/store.go: ReplacePeriods semantics
*/
package vacation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/generic"
)

// BookingRequest is the admin's candidate set for one employee-year.
type BookingRequest struct {
	Key     generic.EmployeeKey
	Periods []generic.DateRange
	Split   string
}

type BookingService struct {
	Store  generic.TxStore
	Audit  *Auditor
	Logger logrus.FieldLogger
}

// errRejected aborts the transaction after a failed validation.
var errRejected = errors.New("booking rejected")

// Book is the create path: the employee-year must hold no periods yet.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (ValidationResult, error) {
	result, err := s.commit(ctx, req, false)
	if err != nil || !result.OK {
		return result, err
	}
	s.Audit.Record(ctx, generic.AuditBookingCreated, req.Key, bookingPayload(req))
	return result, nil
}

// Rebook is the edit path: the employee's own current periods are excluded
// from capacity and replaced as a whole. An empty period list clears them.
func (s *BookingService) Rebook(ctx context.Context, req BookingRequest) (ValidationResult, error) {
	if len(req.Periods) == 0 {
		if err := s.clear(ctx, req.Key); err != nil {
			return ValidationResult{}, err
		}
		s.Audit.Record(ctx, generic.AuditBookingReplaced, req.Key, map[string]any{"periods": 0})
		return ValidationResult{OK: true}, nil
	}

	result, err := s.commit(ctx, req, true)
	if err != nil || !result.OK {
		return result, err
	}
	s.Audit.Record(ctx, generic.AuditBookingReplaced, req.Key, bookingPayload(req))
	return result, nil
}

// Preview validates without writing.
func (s *BookingService) Preview(ctx context.Context, req BookingRequest, edit bool) (ValidationResult, error) {
	split, err := ParseSplitSpec(req.Split)
	if err != nil {
		return ValidationResult{}, err
	}
	employee, err := s.Store.GetEmployee(ctx, req.Key)
	if err != nil {
		return ValidationResult{}, err
	}
	return validatorFor(s.Store, s.Logger).Validate(ctx, ValidationInput{
		Employee:      employee,
		Periods:       req.Periods,
		Split:         split,
		ReferenceYear: req.Key.ReferenceYear,
		Edit:          edit,
	})
}

// Periods returns the booked periods of an employee-year.
func (s *BookingService) Periods(ctx context.Context, key generic.EmployeeKey) ([]generic.VacationPeriod, error) {
	if _, err := s.Store.GetEmployee(ctx, key); err != nil {
		return nil, err
	}
	return periodsOf(ctx, s.Store, key)
}

// Reset deletes every period of the registration in the given years.
func (s *BookingService) Reset(ctx context.Context, id generic.RegistrationID, years []int) (int, error) {
	var deleted int
	err := s.Store.WithTx(ctx, func(tx generic.Store) error {
		n, err := tx.DeletePeriods(ctx, id, years)
		if err != nil {
			return fmt.Errorf("failed to reset periods of %s: %w", id, err)
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Audit.Record(ctx, generic.AuditBookingReset, generic.EmployeeKey{RegistrationID: id},
		map[string]any{"years": years, "deleted": deleted})
	logger(s.Logger).WithFields(logrus.Fields{
		"registration": id,
		"years":        years,
		"deleted":      deleted,
	}).Info("vacation reset")
	return deleted, nil
}

func (s *BookingService) commit(ctx context.Context, req BookingRequest, edit bool) (ValidationResult, error) {
	split, err := ParseSplitSpec(req.Split)
	if err != nil {
		return ValidationResult{}, err
	}

	var result ValidationResult
	err = s.Store.WithTx(ctx, func(tx generic.Store) error {
		employee, err := tx.GetEmployee(ctx, req.Key)
		if err != nil {
			return err
		}

		if !edit {
			existing, err := periodsOf(ctx, tx, req.Key)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("%w: %s", generic.ErrAlreadyBooked, req.Key)
			}
		}

		result, err = validatorFor(tx, s.Logger).Validate(ctx, ValidationInput{
			Employee:      employee,
			Periods:       req.Periods,
			Split:         split,
			ReferenceYear: req.Key.ReferenceYear,
			Edit:          edit,
		})
		if err != nil {
			return err
		}
		if !result.OK {
			return errRejected
		}

		if err := tx.ReplacePeriods(ctx, req.Key, toPeriods(req.Key, req.Periods)); err != nil {
			return fmt.Errorf("failed to store periods for %s: %w", req.Key, err)
		}
		return nil
	})

	if errors.Is(err, errRejected) {
		logger(s.Logger).WithFields(logrus.Fields{
			"key":      req.Key.String(),
			"problems": len(result.Problems),
		}).Info("booking rejected")
		return result, nil
	}
	if err != nil {
		return ValidationResult{}, err
	}

	logger(s.Logger).WithFields(logrus.Fields{
		"key":     req.Key.String(),
		"periods": len(req.Periods),
		"edit":    edit,
	}).Info("booking stored")
	return result, nil
}

func (s *BookingService) clear(ctx context.Context, key generic.EmployeeKey) error {
	return s.Store.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.GetEmployee(ctx, key); err != nil {
			return err
		}
		if err := tx.ReplacePeriods(ctx, key, nil); err != nil {
			return fmt.Errorf("failed to clear periods for %s: %w", key, err)
		}
		return nil
	})
}

func validatorFor(st generic.Store, l logrus.FieldLogger) *Validator {
	return &Validator{Capacity: &CapacityChecker{Store: st, Logger: l}}
}

func periodsOf(ctx context.Context, st generic.Store, key generic.EmployeeKey) ([]generic.VacationPeriod, error) {
	year := key.ReferenceYear
	periods, err := st.FindVacationPeriods(ctx, generic.PeriodFilter{
		RegistrationIDs: []generic.RegistrationID{key.RegistrationID},
		ReferenceYear:   &year,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load periods for %s: %w", key, err)
	}
	return periods, nil
}

func toPeriods(key generic.EmployeeKey, ranges []generic.DateRange) []generic.VacationPeriod {
	out := make([]generic.VacationPeriod, len(ranges))
	for i, r := range ranges {
		out[i] = generic.VacationPeriod{
			RegistrationID: key.RegistrationID,
			ReferenceYear:  key.ReferenceYear,
			Sequence:       i + 1,
			Range:          r,
		}
	}
	return out
}

func bookingPayload(req BookingRequest) map[string]any {
	ranges := make([]string, len(req.Periods))
	for i, r := range req.Periods {
		ranges[i] = r.String()
	}
	return map[string]any{"split": req.Split, "periods": ranges}
}
