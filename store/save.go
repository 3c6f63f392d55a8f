package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jacentio/strata/model"
)

// persist runs the save protocol shared by both strategies:
//
//  1. attribute pre-save hooks
//  2. key generation for new instances
//  3. model pre-save hook
//  4. required-field check
//  5. mutation map from the dirty fields
//  6. one BatchMutate call, skipped when there is nothing to write
//  7. post-save hooks
//
// Any failure before step 6 leaves the store untouched. If BatchMutate fails
// the dirty set is kept so the caller can retry. Once it succeeds the
// instance is marked persisted even if a post-save hook fails.
func persist(ctx context.Context, cfg *Config, client Client, inst *model.Instance,
	keys func(*model.Instance) error, build func(*model.Instance) (MutationMap, error)) error {
	s := inst.Schema()

	if err := s.RunAttributePreSave(ctx, inst); err != nil {
		return err
	}
	if inst.IsNew() {
		if err := keys(inst); err != nil {
			return err
		}
	}
	if err := s.RunPreSave(ctx, inst); err != nil {
		return err
	}
	if err := s.CheckRequired(inst); err != nil {
		return err
	}

	m, err := build(inst)
	if err != nil {
		return err
	}
	if len(m) > 0 {
		if err := client.BatchMutate(ctx, m); err != nil {
			return storeErr("batch_mutate", err)
		}
	}
	cfg.Logger.Debug("saved",
		zap.String("model", s.Name()),
		zap.Bool("new", inst.IsNew()),
		zap.Int("columns", m.Len()),
	)

	hookErr := s.RunPostSave(ctx, inst)
	inst.MarkPersisted()
	if hookErr != nil {
		cfg.Logger.Warn("post-save hook failed after write",
			zap.String("model", s.Name()),
			zap.Error(hookErr),
		)
		return fmt.Errorf("saved, but %w", hookErr)
	}
	return nil
}

func checkSchema(want *model.Schema, inst *model.Instance) error {
	if inst.Schema() != want {
		return fmt.Errorf("%w: got %s, store holds %s", ErrWrongSchema, inst.Schema().Name(), want.Name())
	}
	return nil
}
