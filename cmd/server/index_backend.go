package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/umfhero/pixel-agents/internal/office/catalogs"
	"github.com/umfhero/pixel-agents/internal/persistence/indexdb"
)

// openRuntimeIndex opens the sqlite index unless it is disabled by flag or
// by PA_INDEX_BACKEND=none.
func openRuntimeIndex(dbPath string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("PA_INDEX_BACKEND"))) {
	case "none", "off", "disabled":
		return nil, nil
	}
	return indexdb.OpenSQLite(dbPath)
}

func upsertCatalog(idx *indexdb.SQLiteIndex, path string, cat *catalogs.Catalog) error {
	name := "furniture:embedded"
	raw, err := json.Marshal(cat.Entries)
	if err != nil {
		return err
	}
	if path != "" {
		name = "furniture:" + path
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		raw = b
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return idx.UpsertCatalog(ctx, name, cat.Digest, raw)
}
