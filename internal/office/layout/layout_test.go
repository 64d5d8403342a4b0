package layout

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

func sampleLayout() *Layout {
	l := New(4, 3, tiles.Floor1)
	for c := 0; c < 4; c++ {
		l.SetTile(c, 0, tiles.Wall, nil)
	}
	l.SetTile(3, 2, tiles.Void, nil)
	l.SetTile(1, 1, tiles.Floor5, &tiles.Tint{H: -40, S: 10, B: 5, C: -3})
	l.SetTile(2, 1, tiles.Floor2, tiles.Neutral())
	l.Furniture = append(l.Furniture,
		Placement{UID: "b", Type: "desk", Col: 1, Row: 1, GroupID: "b"},
		Placement{UID: "a", Type: "monitor", Col: 1, Row: 1, GroupID: "b", Color: &tiles.Tint{B: 20}},
		Placement{UID: "c", Type: "painting", Col: 0, Row: 0},
	)
	return l
}

func TestSerializeLoad_RoundTrip(t *testing.T) {
	for _, l := range []*Layout{sampleLayout(), New(1, 1, tiles.Void), Default()} {
		b, err := Serialize(l)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		got, err := Load(b)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !reflect.DeepEqual(got, l) {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, l)
		}
	}
}

func TestSerialize_FieldNames(t *testing.T) {
	b, err := Serialize(sampleLayout())
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	for _, key := range []string{`"version"`, `"cols"`, `"rows"`, `"tiles"`, `"tileColors"`, `"furniture"`, `"groupId"`, `"uid"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("missing %s in %s", key, b)
		}
	}
}

func TestMigrate_CurrentVersionIsNoOp(t *testing.T) {
	b, _ := Serialize(sampleLayout())
	rec, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	before, _ := json.Marshal(rec)
	rec, err = Migrate(rec)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	after, _ := json.Marshal(rec)
	if string(before) != string(after) {
		t.Fatalf("migration changed a current record:\n%s\n%s", before, after)
	}
}

func TestLoad_V0WithoutTileColorsBackfillsNeutral(t *testing.T) {
	raw := `{"version":0,"cols":20,"rows":12,"tiles":[` + strings.TrimSuffix(strings.Repeat("1,", 240), ",") + `],
		"furniture":[{"uid":"d1","type":"desk","col":3,"row":3}]}`
	l, err := Load([]byte(raw))
	if err != nil {
		t.Fatalf("load v0: %v", err)
	}
	if l.Version != CurrentVersion {
		t.Fatalf("version=%d", l.Version)
	}
	if len(l.TileColors) != 240 {
		t.Fatalf("tileColors len=%d", len(l.TileColors))
	}
	for i, c := range l.TileColors {
		if c == nil || *c != (tiles.Tint{}) {
			t.Fatalf("tileColors[%d]=%v, want neutral", i, c)
		}
	}
	if len(l.Furniture) != 1 || l.Furniture[0].UID != "d1" {
		t.Fatalf("furniture lost: %+v", l.Furniture)
	}
}

func TestLoad_MissingVersionIsV0(t *testing.T) {
	l, err := Load([]byte(`{"cols":2,"rows":1,"tiles":[0,1]}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(l.TileColors) != 2 || len(l.Furniture) != 0 || l.Furniture == nil {
		t.Fatalf("defaults not added: %+v", l)
	}
}

func TestLoad_V1WallColorFoldsIntoWallTiles(t *testing.T) {
	raw := `{"version":1,"cols":3,"rows":1,"tiles":[0,1,0],
		"tileColors":[null,null,{"h":5,"s":0,"b":0,"c":0}],
		"wallColor":{"h":90,"s":-20,"b":0,"c":0},
		"furniture":[]}`
	l, err := Load([]byte(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.TileColors[0] == nil || *l.TileColors[0] != (tiles.Tint{H: 90, S: -20}) {
		t.Fatalf("wall tile tint=%v", l.TileColors[0])
	}
	if l.TileColors[1] != nil {
		t.Fatalf("floor tile should keep absent tint, got %v", l.TileColors[1])
	}
	if *l.TileColors[2] != (tiles.Tint{H: 5}) {
		t.Fatalf("explicit wall tint overwritten: %v", l.TileColors[2])
	}
	b, _ := Serialize(l)
	if strings.Contains(string(b), "wallColor") {
		t.Fatalf("obsolete field survived: %s", b)
	}
}

func TestLoad_Failures(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"future version", `{"version":99,"cols":1,"rows":1,"tiles":[1],"tileColors":[null],"furniture":[]}`, ErrFutureVersion},
		{"tile count", `{"version":2,"cols":2,"rows":1,"tiles":[1],"tileColors":[null,null],"furniture":[]}`, ErrInvalidLayout},
		{"color count", `{"version":2,"cols":1,"rows":1,"tiles":[1],"tileColors":[],"furniture":[]}`, ErrInvalidLayout},
		{"tile kind", `{"version":2,"cols":1,"rows":1,"tiles":[9],"tileColors":[null],"furniture":[]}`, ErrInvalidLayout},
		{"tint range", `{"version":2,"cols":1,"rows":1,"tiles":[1],"tileColors":[{"h":500}],"furniture":[]}`, ErrInvalidLayout},
		{"duplicate uid", `{"version":2,"cols":1,"rows":1,"tiles":[1],"tileColors":[null],"furniture":[{"uid":"x","type":"a","col":0,"row":0},{"uid":"x","type":"b","col":0,"row":0}]}`, ErrInvalidLayout},
		{"not json", `{`, ErrInvalidLayout},
		{"v0 without grid", `{"tiles":[]}`, ErrMigration},
	}
	for _, c := range cases {
		_, err := Load([]byte(c.raw))
		if !errors.Is(err, c.want) {
			t.Fatalf("%s: err=%v want %v", c.name, err, c.want)
		}
	}
}

func TestLoadOrDefault_FallsBack(t *testing.T) {
	l, err := LoadOrDefault([]byte(`garbage`))
	if err == nil {
		t.Fatalf("expected the load error to be reported")
	}
	if !reflect.DeepEqual(l, Default()) {
		t.Fatalf("expected default layout")
	}
}

func TestDefault_IsTwentyByTwelve(t *testing.T) {
	l := Default()
	if l.Cols != 20 || l.Rows != 12 || len(l.Furniture) == 0 {
		t.Fatalf("unexpected default: %dx%d with %d pieces", l.Cols, l.Rows, len(l.Furniture))
	}
	if l.Kind(0, 0) != tiles.Wall || l.Kind(1, 1) != tiles.Floor1 || l.Kind(-1, 0) != tiles.Void {
		t.Fatalf("unexpected tiles")
	}
}

func TestClone_IsDeep(t *testing.T) {
	l := sampleLayout()
	c := l.Clone()
	c.Tiles[0] = tiles.Void
	c.TileColors[5].H = 1
	c.Furniture[1].Color.B = 99
	if l.Tiles[0] != tiles.Wall || l.TileColors[5].H != -40 || l.Furniture[1].Color.B != 20 {
		t.Fatalf("clone shares memory with original")
	}
	if l.FindPlacement("c") != 2 || l.FindPlacement("zz") != -1 {
		t.Fatalf("FindPlacement wrong")
	}
}
