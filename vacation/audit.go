package vacation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/generic"
)

// Auditor appends admin actions to the audit log. A nil Auditor or a nil Log
// records nothing. Append failures are logged, never returned: the audited
// write has already committed.
type Auditor struct {
	Log    generic.AuditLog
	Logger logrus.FieldLogger
	Now    func() time.Time
}

func (a *Auditor) Record(ctx context.Context, action generic.AuditAction, key generic.EmployeeKey, payload map[string]any) {
	if a == nil || a.Log == nil {
		return
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	entry := generic.AuditEntry{
		ID:             uuid.NewString(),
		Timestamp:      now().UTC(),
		Action:         action,
		RegistrationID: key.RegistrationID,
		ReferenceYear:  key.ReferenceYear,
		Payload:        payload,
	}
	if err := a.Log.AppendAudit(ctx, entry); err != nil {
		logger(a.Logger).WithError(err).WithFields(logrus.Fields{
			"action": action,
			"key":    key.String(),
		}).Warn("failed to append audit entry")
	}
}
