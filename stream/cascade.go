package stream

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jacentio/strata/model"
	"github.com/jacentio/strata/store"
)

const cascadeBatch = 100

// Cascade returns a ChangeFunc that deletes the children of removed rows.
// Children are found through the foreign-key relationships in reg and
// deleted through the store registered for their model name. Each child
// removal produces its own stream record, so grandchildren follow.
func Cascade(reg *model.Registry, stores map[string]*store.RowStore, logger *zap.Logger) ChangeFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, c Change) error {
		if c.Kind != Remove || c.Schema.Strategy() != model.RowKeyed || c.Key == nil {
			return nil
		}
		parent, err := c.Schema.RowKey().Codec().Decode(c.Key)
		if err != nil {
			return fmt.Errorf("cascade %s: %w", c.Schema.Name(), err)
		}

		for _, rel := range reg.ChildrenOf(c.Schema.Name()) {
			rs, ok := stores[rel.ChildType]
			if !ok {
				logger.Warn("no store for child model",
					zap.String("parent", rel.ParentType),
					zap.String("child", rel.ChildType),
				)
				continue
			}
			n, err := deleteChildren(ctx, rs, rel.ParentKeyAttr, parent)
			if err != nil {
				return fmt.Errorf("cascade %s -> %s: %w", rel.ParentType, rel.ChildType, err)
			}
			logger.Info("cascade delete completed",
				zap.String("parent", rel.ParentType),
				zap.String("child", rel.ChildType),
				zap.Int("childrenDeleted", n),
			)
		}
		return nil
	}
}

func deleteChildren(ctx context.Context, rs *store.RowStore, attr string, parent any) (int, error) {
	q := rs.Query().Where(attr, model.EQ, parent).Limit(cascadeBatch)
	deleted := 0
	for {
		res, err := rs.Execute(ctx, q)
		if err != nil {
			return deleted, err
		}
		if res.Len() == 0 {
			return deleted, nil
		}
		for _, child := range res.Items() {
			if _, err := rs.Delete(ctx, child); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
}
