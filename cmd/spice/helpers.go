package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/apply"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, common.NewUserError("Could not open the database at "+cfg.Database.Path, err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newMatcher builds a matcher in the configured time zone.
func newMatcher() (*rules.Matcher, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return rules.NewMatcher(loc), nil
}

func newApplyService(store apply.Store, opts ...apply.Option) (*apply.Service, error) {
	matcher, err := newMatcher()
	if err != nil {
		return nil, err
	}
	base := []apply.Option{
		apply.WithMatcher(matcher),
		apply.WithWorkers(cfg.Apply.Workers),
	}
	return apply.NewService(store, append(base, opts...)...), nil
}

// backupBeforeWrite snapshots the database into a backups directory next to
// it.
func backupBeforeWrite(ctx context.Context, store *storage.SQLiteStorage) (string, error) {
	dir := filepath.Join(filepath.Dir(store.Path()), "backups")
	dest := filepath.Join(dir, fmt.Sprintf("spice-%s.db", time.Now().Format("20060102-150405")))
	if err := store.Backup(ctx, dest); err != nil {
		return "", fmt.Errorf("database backup failed: %w", err)
	}
	return dest, nil
}

// readJSONArg decodes a flag value that is either inline JSON or @path.
func readJSONArg(value string, v any) error {
	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %w", common.ErrInvalidInput, err)
	}
	return nil
}

// buildAction turns the action flags into a RuleAction. Empty flags are left
// unset.
func buildAction(category, internal, notes string, notesSet bool) (model.RuleAction, error) {
	var action model.RuleAction
	if category != "" {
		action.Category = model.StringPtr(category)
	}
	if internal != "" {
		if internal != model.InternalYes && internal != model.InternalNo {
			return action, fmt.Errorf("%w: --internal must be %q or %q", common.ErrInvalidInput, model.InternalYes, model.InternalNo)
		}
		action.IsInternal = model.StringPtr(internal)
	}
	if notesSet {
		action.Notes = model.StringPtr(notes)
	}
	if action.IsEmpty() {
		return action, fmt.Errorf("%w: set at least one of --category, --internal or --notes", common.ErrInvalidRule)
	}
	return action, nil
}

// parseDateFlag reads a YYYY-MM-DD flag in the configured time zone.
func parseDateFlag(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	t, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", common.ErrInvalidInput, value)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
