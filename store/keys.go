package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jacentio/strata/codec"
	"github.com/jacentio/strata/model"
)

// ensureKey assigns a generated value to a null key attribute. UUID keys get
// a time-based UUID so rows written together sort together; string and bytes
// keys get the text or bytes of a random one.
func ensureKey(inst *model.Instance, a *model.Attribute) error {
	if inst.Value(a.Name()) != nil {
		return nil
	}
	var v any
	switch a.Kind() {
	case codec.KindUUID:
		id, err := uuid.NewUUID()
		if err != nil {
			return fmt.Errorf("generate %s: %w", a.Name(), err)
		}
		v = id
	case codec.KindString:
		v = uuid.NewString()
	case codec.KindBytes:
		id := uuid.New()
		v = id[:]
	default:
		return fmt.Errorf("%w: %s.%s is null and %s keys cannot be generated",
			ErrMissingKey, inst.Schema().Name(), a.Name(), a.Kind())
	}
	return inst.Assign(a.Name(), v)
}
