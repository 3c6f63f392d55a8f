package model

import (
	"context"
	"time"
)

// Audit field names.
const (
	DateCreated  = "date_created"
	DateModified = "date_modified"
)

// now is replaced in tests.
var now = time.Now

// AuditFields returns the creation and modification timestamps. Both are
// indexed and read-only; StampAudit maintains them.
func AuditFields() []Field {
	return []Field{
		F(DateCreated, Timestamp(With(Indexed|ReadOnly))),
		F(DateModified, Timestamp(With(Indexed|ReadOnly))),
	}
}

// StampAudit is a pre-save Hook that sets date_created on new instances and
// date_modified on every save. Schemas without the audit fields are left
// untouched.
func StampAudit(_ context.Context, inst *Instance) error {
	t := now().UTC()
	if _, ok := inst.schema.Lookup(DateCreated); ok && inst.isNew && inst.values[DateCreated] == nil {
		if err := inst.Assign(DateCreated, t); err != nil {
			return err
		}
	}
	if _, ok := inst.schema.Lookup(DateModified); ok {
		return inst.Assign(DateModified, t)
	}
	return nil
}
