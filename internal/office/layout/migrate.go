package layout

import (
	"encoding/json"
	"fmt"
)

// Record is the untyped form of a layout file, as decoded from JSON with
// numbers kept as json.Number. Migrations operate on records so that fields
// which no longer exist in Layout can still be read.
type Record = map[string]any

// migrations[v] moves a record from version v to v+1.
var migrations = []func(Record) error{
	migrateV0ToV1,
	migrateV1ToV2,
}

// RecordVersion returns the record's schema version; a missing field is version 0.
func RecordVersion(rec Record) (int, error) {
	v, ok := rec["version"]
	if !ok || v == nil {
		return 0, nil
	}
	n, err := asInt(v)
	if err != nil {
		return 0, fmt.Errorf("%w: version: %v", ErrInvalidLayout, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative version %d", ErrInvalidLayout, n)
	}
	return n, nil
}

// Migrate applies every step from the record's version up to CurrentVersion.
// A current-version record is returned untouched.
func Migrate(rec Record) (Record, error) {
	v, err := RecordVersion(rec)
	if err != nil {
		return nil, err
	}
	if v > CurrentVersion {
		return nil, fmt.Errorf("%w: %d (newest known is %d)", ErrFutureVersion, v, CurrentVersion)
	}
	for ; v < CurrentVersion; v++ {
		if err := migrations[v](rec); err != nil {
			return nil, fmt.Errorf("%w: v%d->v%d: %v", ErrMigration, v, v+1, err)
		}
		rec["version"] = json.Number(fmt.Sprint(v + 1))
	}
	return rec, nil
}

// v0 files predate tile tinting and could omit an empty furniture list.
func migrateV0ToV1(rec Record) error {
	n, err := recordCells(rec)
	if err != nil {
		return err
	}
	if c, ok := rec["tileColors"]; !ok || c == nil {
		colors := make([]any, n)
		for i := range colors {
			colors[i] = neutralTintRecord()
		}
		rec["tileColors"] = colors
	}
	if f, ok := rec["furniture"]; !ok || f == nil {
		rec["furniture"] = []any{}
	}
	return nil
}

// v1 files carried one layout-wide wallColor; v2 keeps tints per tile only.
func migrateV1ToV2(rec Record) error {
	wc, ok := rec["wallColor"]
	delete(rec, "wallColor")
	if !ok || wc == nil {
		return nil
	}
	tint, ok := wc.(map[string]any)
	if !ok {
		return fmt.Errorf("wallColor: expected object")
	}
	kinds, ok := rec["tiles"].([]any)
	if !ok {
		return fmt.Errorf("tiles: expected array")
	}
	colors, ok := rec["tileColors"].([]any)
	if !ok {
		return fmt.Errorf("tileColors: expected array")
	}
	for i, k := range kinds {
		if i >= len(colors) {
			break
		}
		kind, err := asInt(k)
		if err != nil || kind != 0 {
			continue
		}
		if colors[i] != nil && !isNeutralTintRecord(colors[i]) {
			continue
		}
		colors[i] = copyRecord(tint)
	}
	return nil
}

func recordCells(rec Record) (int, error) {
	cols, err := asInt(rec["cols"])
	if err != nil {
		return 0, fmt.Errorf("cols: %v", err)
	}
	rows, err := asInt(rec["rows"])
	if err != nil {
		return 0, fmt.Errorf("rows: %v", err)
	}
	if cols <= 0 || rows <= 0 {
		return 0, fmt.Errorf("grid %dx%d is empty", cols, rows)
	}
	return cols * rows, nil
}

func neutralTintRecord() map[string]any {
	zero := json.Number("0")
	return map[string]any{"h": zero, "s": zero, "b": zero, "c": zero}
}

func isNeutralTintRecord(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, k := range []string{"h", "s", "b", "c"} {
		if x, ok := m[k]; ok {
			if n, err := asInt(x); err != nil || n != 0 {
				return false
			}
		}
	}
	return true
}

func copyRecord(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		return int(i), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case nil:
		return 0, fmt.Errorf("missing")
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
