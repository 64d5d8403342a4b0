package tuning

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	IdleWindowMs           int `yaml:"idle_window_ms"`
	SelectionLineThreshold int `yaml:"selection_line_threshold"`

	LayoutFile  string `yaml:"layout_file"`
	CatalogFile string `yaml:"catalog_file"`
	SpritesDir  string `yaml:"sprites_dir"`
	RosterDB    string `yaml:"roster_db"`
	JournalDir  string `yaml:"journal_dir"`

	WatchDebounceMs int `yaml:"watch_debounce_ms"`

	Backups Backups `yaml:"backups"`
}

type Backups struct {
	Dir  string `yaml:"dir"`
	Keep int    `yaml:"keep"`
}

// Defaults returns the tuning used for every key a file leaves out. Paths
// other than the layout file live under dataDir.
func Defaults(dataDir string) Tuning {
	return Tuning{
		IdleWindowMs:           5000,
		SelectionLineThreshold: 2,
		LayoutFile:             "~/.pixel-agents/layout.json",
		RosterDB:               filepath.Join(dataDir, "office.db"),
		JournalDir:             filepath.Join(dataDir, "journal"),
		WatchDebounceMs:        50,
		Backups: Backups{
			Dir:  filepath.Join(dataDir, "backups"),
			Keep: 20,
		},
	}
}

// Load overlays path onto Defaults(dataDir). A missing file yields the
// defaults together with an error matching os.ErrNotExist; any other error
// is a bad file.
func Load(path, dataDir string) (Tuning, error) {
	t := Defaults(dataDir)
	raw, err := os.ReadFile(path)
	if err != nil {
		return t.expand(), err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Defaults(dataDir).expand(), fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Defaults(dataDir).expand(), fmt.Errorf("tuning.yaml: %w", err)
	}
	return t.expand(), nil
}

func (t Tuning) Validate() error {
	switch {
	case t.IdleWindowMs <= 0:
		return fmt.Errorf("idle_window_ms must be > 0")
	case t.SelectionLineThreshold < 0:
		return fmt.Errorf("selection_line_threshold must be >= 0")
	case strings.TrimSpace(t.LayoutFile) == "":
		return fmt.Errorf("layout_file is required")
	case t.WatchDebounceMs < 0:
		return fmt.Errorf("watch_debounce_ms must be >= 0")
	case t.Backups.Keep < 0:
		return fmt.Errorf("backups.keep must be >= 0")
	}
	return nil
}

func (t Tuning) IdleWindow() time.Duration {
	return time.Duration(t.IdleWindowMs) * time.Millisecond
}

func (t Tuning) WatchDebounce() time.Duration {
	return time.Duration(t.WatchDebounceMs) * time.Millisecond
}

func (t Tuning) expand() Tuning {
	t.LayoutFile = ExpandHome(t.LayoutFile)
	t.CatalogFile = ExpandHome(t.CatalogFile)
	t.SpritesDir = ExpandHome(t.SpritesDir)
	t.RosterDB = ExpandHome(t.RosterDB)
	t.JournalDir = ExpandHome(t.JournalDir)
	t.Backups.Dir = ExpandHome(t.Backups.Dir)
	return t
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
