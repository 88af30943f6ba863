package vacation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/generic"
)

// MigrationService copies a reference year's employees into another year.
type MigrationService struct {
	Store  generic.TxStore
	Ranks  RankTrigger
	Audit  *Auditor
	Logger logrus.FieldLogger
}

// MigrationResult reports how the target year changed.
type MigrationResult struct {
	SourceYear int `json:"source_year"`
	TargetYear int `json:"target_year"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
}

// Migrate upserts every employee of sourceYear into targetYear on
// (registration-id, targetYear), recomputing the acquisition window and day
// offsets for the target year. Bookings and ranks are not copied.
func (s *MigrationService) Migrate(ctx context.Context, sourceYear, targetYear int) (MigrationResult, error) {
	result := MigrationResult{SourceYear: sourceYear, TargetYear: targetYear}
	if sourceYear == targetYear {
		return result, fmt.Errorf("%w: %d", generic.ErrInvalidMigration, sourceYear)
	}

	err := s.Store.WithTx(ctx, func(tx generic.Store) error {
		y := sourceYear
		source, err := tx.FindEmployees(ctx, generic.EmployeeFilter{ReferenceYear: &y})
		if err != nil {
			return fmt.Errorf("failed to load source year %d: %w", sourceYear, err)
		}
		if len(source) == 0 {
			return fmt.Errorf("%w: no employees in source year %d", generic.ErrEmployeeNotFound, sourceYear)
		}

		for _, e := range source {
			e.ID = 0
			e.Rank = nil
			e.ReferenceYear = targetYear
			if err := e.Derive(); err != nil {
				return fmt.Errorf("failed to derive %s for %d: %w", e.RegistrationID, targetYear, err)
			}

			_, err := tx.GetEmployee(ctx, e.Key())
			switch {
			case err == nil:
				if err := tx.UpdateEmployee(ctx, e); err != nil {
					return fmt.Errorf("failed to update %s: %w", e.Key(), err)
				}
				result.Updated++
			case generic.IsNotFound(err):
				if _, err := tx.CreateEmployee(ctx, e); err != nil {
					return fmt.Errorf("failed to create %s: %w", e.Key(), err)
				}
				result.Created++
			default:
				return err
			}
		}
		return nil
	})
	if err != nil {
		return MigrationResult{SourceYear: sourceYear, TargetYear: targetYear}, err
	}

	s.Audit.Record(ctx, generic.AuditYearMigrated, generic.EmployeeKey{}, map[string]any{
		"source_year": sourceYear,
		"target_year": targetYear,
		"created":     result.Created,
		"updated":     result.Updated,
	})
	logger(s.Logger).WithFields(logrus.Fields{
		"source":  sourceYear,
		"target":  targetYear,
		"created": result.Created,
		"updated": result.Updated,
	}).Info("year migrated")

	if s.Ranks != nil {
		s.Ranks.Trigger()
	}
	return result, nil
}
