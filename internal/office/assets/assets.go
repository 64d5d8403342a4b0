// Package assets reads pre-decoded sprite grids from disk. Image decoding
// happens upstream; files here are JSON arrays of pixel rows.
package assets

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/umfhero/pixel-agents/internal/office/autotile"
	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

const (
	WallsFile  = "walls.json"
	FloorsFile = "floors.json"
)

// Problem names one asset that was skipped.
type Problem struct {
	Asset string
	Err   error
}

func (p Problem) Error() string { return fmt.Sprintf("%s: %v", p.Asset, p.Err) }

// Load builds a sprite set from dir. Missing or malformed files and sprites
// are skipped and reported; the rest of the set still loads. An empty dir
// yields an empty set and no problems.
func Load(dir string, logger *log.Logger) (*autotile.SpriteSet, []Problem) {
	set := &autotile.SpriteSet{}
	if dir == "" {
		return set, nil
	}
	var problems []Problem
	report := func(asset string, err error) {
		problems = append(problems, Problem{Asset: asset, Err: err})
		if logger != nil {
			logger.Printf("asset skipped: %s: %v", asset, err)
		}
	}

	walls, err := readSprites(filepath.Join(dir, WallsFile))
	if err != nil {
		report(WallsFile, err)
	}
	for i, s := range walls {
		name := fmt.Sprintf("%s[%d]", WallsFile, i)
		if i >= autotile.WallVariants {
			report(name, fmt.Errorf("more than %d wall variants", autotile.WallVariants))
			break
		}
		if err := check(s); err != nil {
			report(name, err)
			continue
		}
		set.Walls[i] = s
	}

	floors, err := readSprites(filepath.Join(dir, FloorsFile))
	if err != nil {
		report(FloorsFile, err)
	}
	for i, s := range floors {
		name := fmt.Sprintf("%s[%d]", FloorsFile, i)
		if i >= tiles.FloorCount {
			report(name, fmt.Errorf("more than %d floor patterns", tiles.FloorCount))
			break
		}
		if err := check(s); err != nil {
			report(name, err)
			continue
		}
		set.Floors[i] = s
	}
	return set, problems
}

func readSprites(path string) ([]autotile.Sprite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []autotile.Sprite
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// check rejects null sprites, ragged rows and unparseable colours.
func check(s autotile.Sprite) error {
	if len(s) == 0 {
		return fmt.Errorf("empty sprite")
	}
	w := len(s[0])
	for y, row := range s {
		if len(row) != w {
			return fmt.Errorf("row %d has %d pixels, want %d", y, len(row), w)
		}
		for x, px := range row {
			if px == "" {
				continue
			}
			if _, err := colorful.Hex(px); err != nil {
				return fmt.Errorf("pixel (%d,%d): %q is not #rrggbb", x, y, px)
			}
		}
	}
	return nil
}
