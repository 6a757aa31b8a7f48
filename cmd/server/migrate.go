package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/quantaleap/ascent/internal/services"
	"github.com/quantaleap/ascent/internal/store"
)

// ImportLegacyIfNeeded loads a JSON export of the old browser-local
// assessment data (an array of records, the shape the original front-end kept
// in localStorage) into the local cache, then renames the file so the import
// runs once. An unset path or a missing file is a no-op.
func ImportLegacyIfNeeded(path string, cache *store.SQLiteCache, log *zap.SugaredLogger) error {
	if path == "" {
		return nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read legacy export: %w", err)
	}
	var records []*services.AssessmentRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return fmt.Errorf("parse legacy export: %w", err)
	}
	imported := 0
	for _, rec := range records {
		if rec == nil || rec.SessionID == "" {
			continue
		}
		if err := cache.Upsert(rec); err != nil {
			return fmt.Errorf("import %s: %w", rec.SessionID, err)
		}
		imported++
	}
	if err := os.Rename(path, path+".imported"); err != nil {
		return fmt.Errorf("mark legacy export imported: %w", err)
	}
	log.Infow("imported legacy assessments into local cache", "count", imported, "path", path)
	return nil
}
