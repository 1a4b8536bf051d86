package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/moldworks/moldlab-cli/internal/model"
	"github.com/moldworks/moldlab-cli/internal/store"
	"github.com/moldworks/moldlab-cli/internal/taguchi"
)

// taguchiCheck verifies design balance before a run; an unbalanced
// matrix would bias the level averages.
func taguchiCheck(design []model.FactorCombination) error {
	return eris.Wrap(taguchi.CheckOrthogonal(design), "design matrix")
}

// openRunIndex opens and migrates the sqlite resume index, creating
// its parent directory on first use.
func openRunIndex(ctx context.Context) (*store.RunIndex, error) {
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "store: create dir %s", dir)
		}
	}
	idx, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := idx.Migrate(ctx); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}
