package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

var (
	// ErrFutureVersion is returned for records written by a newer schema.
	ErrFutureVersion = errors.New("unsupported future layout version")
	// ErrMigration is returned when a migration step cannot transform a record.
	ErrMigration = errors.New("layout migration failed")
	// ErrInvalidLayout is returned for records that fail structural validation.
	ErrInvalidLayout = errors.New("invalid layout")
)

// Serialize encodes a layout as its canonical file record.
func Serialize(l *Layout) ([]byte, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil layout", ErrInvalidLayout)
	}
	rec := *l
	if rec.Furniture == nil {
		rec.Furniture = []Placement{}
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Load decodes a layout record of any known version, migrating it forward.
func Load(data []byte) (*Layout, error) {
	rec, err := DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	rec, err = Migrate(rec)
	if err != nil {
		return nil, err
	}
	if err := validateRecord(rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var l Layout
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if l.Furniture == nil {
		l.Furniture = []Placement{}
	}
	if err := Validate(&l); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadOrDefault loads data, falling back to the bundled default layout.
// The returned error, if any, describes why the fallback was used.
func LoadOrDefault(data []byte) (*Layout, error) {
	l, err := Load(data)
	if err != nil {
		return Default(), err
	}
	return l, nil
}

// DecodeRecord parses a layout file into an untyped record.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: empty record", ErrInvalidLayout)
	}
	return rec, nil
}

// Validate checks the structural invariants of a decoded layout.
func Validate(l *Layout) error {
	if l.Version != CurrentVersion {
		return fmt.Errorf("%w: version %d is not current", ErrInvalidLayout, l.Version)
	}
	if l.Cols <= 0 || l.Rows <= 0 || l.Cols > MaxCols || l.Rows > MaxRows {
		return fmt.Errorf("%w: grid %dx%d out of range", ErrInvalidLayout, l.Cols, l.Rows)
	}
	n := l.Cols * l.Rows
	if len(l.Tiles) != n {
		return fmt.Errorf("%w: %d tiles for a %dx%d grid", ErrInvalidLayout, len(l.Tiles), l.Cols, l.Rows)
	}
	if len(l.TileColors) != n {
		return fmt.Errorf("%w: %d tile colors for a %dx%d grid", ErrInvalidLayout, len(l.TileColors), l.Cols, l.Rows)
	}
	for i, k := range l.Tiles {
		if !k.Valid() {
			return fmt.Errorf("%w: tile %d has kind %d", ErrInvalidLayout, i, int(k))
		}
	}
	for i, t := range l.TileColors {
		if t != nil && !t.InRange() {
			return fmt.Errorf("%w: tile %d color out of range", ErrInvalidLayout, i)
		}
	}
	seen := make(map[string]struct{}, len(l.Furniture))
	for _, p := range l.Furniture {
		if p.UID == "" || p.Type == "" {
			return fmt.Errorf("%w: placement missing uid or type", ErrInvalidLayout)
		}
		if _, dup := seen[p.UID]; dup {
			return fmt.Errorf("%w: duplicate placement uid %s", ErrInvalidLayout, p.UID)
		}
		seen[p.UID] = struct{}{}
		if p.Color != nil && !p.Color.InRange() {
			return fmt.Errorf("%w: placement %s color out of range", ErrInvalidLayout, p.UID)
		}
	}
	return nil
}

// NeutralColors returns n neutral tints, the v0 backfill value.
func NeutralColors(n int) []*tiles.Tint {
	out := make([]*tiles.Tint, n)
	for i := range out {
		out[i] = tiles.Neutral()
	}
	return out
}
