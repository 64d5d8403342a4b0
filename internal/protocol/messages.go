package protocol

import (
	"encoding/json"

	"github.com/umfhero/pixel-agents/internal/office/autotile"
	"github.com/umfhero/pixel-agents/internal/office/catalogs"
	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

// Surface -> host.
const (
	KindWebviewReady         Kind = "webviewReady"
	KindAddAgent             Kind = "addAgent"
	KindCloseAgent           Kind = "closeAgent"
	KindSaveLayout           Kind = "saveLayout"
	KindImportLayout         Kind = "importLayout"
	KindExportLayout         Kind = "exportLayout"
	KindResetToDefaultLayout Kind = "resetToDefaultLayout"
	KindPlaceFurniture       Kind = "placeFurniture"
	KindMoveFurniture        Kind = "moveFurniture"
	KindRemoveFurniture      Kind = "removeFurniture"
	KindRecolorFurniture     Kind = "recolorFurniture"
	KindPaintTile            Kind = "paintTile"
)

// Host activity feed -> host.
const (
	KindTextInserted     Kind = "textInserted"
	KindFocusChanged     Kind = "focusChanged"
	KindSelectionChanged Kind = "selectionChanged"
	KindTerminalChanged  Kind = "terminalChanged"
	KindTerminalOutput   Kind = "terminalOutput"
)

// Host -> surface.
const (
	KindExistingAgents   Kind = "existingAgents"
	KindAgentCreated     Kind = "agentCreated"
	KindAgentClosed      Kind = "agentClosed"
	KindAgentStatus      Kind = "agentStatus"
	KindLayoutLoaded     Kind = "layoutLoaded"
	KindTilesRendered    Kind = "tilesRendered"
	KindFurnitureCatalog Kind = "furnitureCatalog"
	KindLayoutExported   Kind = "layoutExported"
	KindActionRejected   Kind = "actionRejected"
	KindNotice           Kind = "notice"
)

var registry = map[Kind]func() Message{
	KindWebviewReady:         func() Message { return &WebviewReady{} },
	KindAddAgent:             func() Message { return &AddAgent{} },
	KindCloseAgent:           func() Message { return &CloseAgent{} },
	KindSaveLayout:           func() Message { return &SaveLayout{} },
	KindImportLayout:         func() Message { return &ImportLayout{} },
	KindExportLayout:         func() Message { return &ExportLayout{} },
	KindResetToDefaultLayout: func() Message { return &ResetToDefaultLayout{} },
	KindPlaceFurniture:       func() Message { return &PlaceFurniture{} },
	KindMoveFurniture:        func() Message { return &MoveFurniture{} },
	KindRemoveFurniture:      func() Message { return &RemoveFurniture{} },
	KindRecolorFurniture:     func() Message { return &RecolorFurniture{} },
	KindPaintTile:            func() Message { return &PaintTile{} },

	KindTextInserted:     func() Message { return &TextInserted{} },
	KindFocusChanged:     func() Message { return &FocusChanged{} },
	KindSelectionChanged: func() Message { return &SelectionChanged{} },
	KindTerminalChanged:  func() Message { return &TerminalChanged{} },
	KindTerminalOutput:   func() Message { return &TerminalOutput{} },

	KindExistingAgents:   func() Message { return &ExistingAgents{} },
	KindAgentCreated:     func() Message { return &AgentCreated{} },
	KindAgentClosed:      func() Message { return &AgentClosed{} },
	KindAgentStatus:      func() Message { return &AgentStatus{} },
	KindLayoutLoaded:     func() Message { return &LayoutLoaded{} },
	KindTilesRendered:    func() Message { return &TilesRendered{} },
	KindFurnitureCatalog: func() Message { return &FurnitureCatalog{} },
	KindLayoutExported:   func() Message { return &LayoutExported{} },
	KindActionRejected:   func() Message { return &ActionRejected{} },
	KindNotice:           func() Message { return &Notice{} },
}

// deref turns the decode target back into the value type the rest of the
// program switches on.
func deref(m Message) Message {
	switch v := m.(type) {
	case *WebviewReady:
		return *v
	case *AddAgent:
		return *v
	case *CloseAgent:
		return *v
	case *SaveLayout:
		return *v
	case *ImportLayout:
		return *v
	case *ExportLayout:
		return *v
	case *ResetToDefaultLayout:
		return *v
	case *PlaceFurniture:
		return *v
	case *MoveFurniture:
		return *v
	case *RemoveFurniture:
		return *v
	case *RecolorFurniture:
		return *v
	case *PaintTile:
		return *v
	case *TextInserted:
		return *v
	case *FocusChanged:
		return *v
	case *SelectionChanged:
		return *v
	case *TerminalChanged:
		return *v
	case *TerminalOutput:
		return *v
	case *ExistingAgents:
		return *v
	case *AgentCreated:
		return *v
	case *AgentClosed:
		return *v
	case *AgentStatus:
		return *v
	case *LayoutLoaded:
		return *v
	case *TilesRendered:
		return *v
	case *FurnitureCatalog:
		return *v
	case *LayoutExported:
		return *v
	case *ActionRejected:
		return *v
	case *Notice:
		return *v
	}
	return m
}

type WebviewReady struct{}

type AddAgent struct{}

type CloseAgent struct {
	ID int `json:"id"`
}

// SaveLayout and ImportLayout carry the raw record so it goes through the
// migrator like a file read does.
type SaveLayout struct {
	Layout json.RawMessage `json:"layout"`
}

type ImportLayout struct {
	Layout json.RawMessage `json:"layout"`
}

type ExportLayout struct{}

type ResetToDefaultLayout struct{}

type PlaceFurniture struct {
	FurnitureType string `json:"furnitureType"`
	Col           int    `json:"col"`
	Row           int    `json:"row"`
}

type MoveFurniture struct {
	UID string `json:"uid"`
	Col int    `json:"col"`
	Row int    `json:"row"`
}

type RemoveFurniture struct {
	UID string `json:"uid"`
}

// RecolorFurniture with a nil Color clears the tint.
type RecolorFurniture struct {
	UID   string      `json:"uid"`
	Color *tiles.Tint `json:"color"`
}

type PaintTile struct {
	Col   int         `json:"col"`
	Row   int         `json:"row"`
	Tile  tiles.Kind  `json:"tile"`
	Color *tiles.Tint `json:"color"`
}

type TextInserted struct{}

type FocusChanged struct{}

type SelectionChanged struct {
	Lines int `json:"lines"`
}

type TerminalChanged struct{}

type TerminalOutput struct{}

type ExistingAgents struct {
	IDs    []int  `json:"ids"`
	Status string `json:"status"`
}

type AgentCreated struct {
	ID int `json:"id"`
}

type AgentClosed struct {
	ID int `json:"id"`
}

type AgentStatus struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

type LayoutLoaded struct {
	Layout    *layout.Layout `json:"layout"`
	WallMasks []int          `json:"wallMasks"`
}

type TilesRendered struct {
	Cols  int             `json:"cols"`
	Rows  int             `json:"rows"`
	Cells []autotile.Cell `json:"cells"`
}

type FurnitureCatalog struct {
	Digest  string                  `json:"digest"`
	Entries []catalogs.FurnitureDef `json:"entries"`
}

type LayoutExported struct {
	Layout json.RawMessage `json:"layout"`
}

type ActionRejected struct {
	Action  Kind   `json:"action"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Notice struct {
	Level   string `json:"level"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (WebviewReady) Kind() Kind         { return KindWebviewReady }
func (AddAgent) Kind() Kind             { return KindAddAgent }
func (CloseAgent) Kind() Kind           { return KindCloseAgent }
func (SaveLayout) Kind() Kind           { return KindSaveLayout }
func (ImportLayout) Kind() Kind         { return KindImportLayout }
func (ExportLayout) Kind() Kind         { return KindExportLayout }
func (ResetToDefaultLayout) Kind() Kind { return KindResetToDefaultLayout }
func (PlaceFurniture) Kind() Kind       { return KindPlaceFurniture }
func (MoveFurniture) Kind() Kind        { return KindMoveFurniture }
func (RemoveFurniture) Kind() Kind      { return KindRemoveFurniture }
func (RecolorFurniture) Kind() Kind     { return KindRecolorFurniture }
func (PaintTile) Kind() Kind            { return KindPaintTile }
func (TextInserted) Kind() Kind         { return KindTextInserted }
func (FocusChanged) Kind() Kind         { return KindFocusChanged }
func (SelectionChanged) Kind() Kind     { return KindSelectionChanged }
func (TerminalChanged) Kind() Kind      { return KindTerminalChanged }
func (TerminalOutput) Kind() Kind       { return KindTerminalOutput }
func (ExistingAgents) Kind() Kind       { return KindExistingAgents }
func (AgentCreated) Kind() Kind         { return KindAgentCreated }
func (AgentClosed) Kind() Kind          { return KindAgentClosed }
func (AgentStatus) Kind() Kind          { return KindAgentStatus }
func (LayoutLoaded) Kind() Kind         { return KindLayoutLoaded }
func (TilesRendered) Kind() Kind        { return KindTilesRendered }
func (FurnitureCatalog) Kind() Kind     { return KindFurnitureCatalog }
func (LayoutExported) Kind() Kind       { return KindLayoutExported }
func (ActionRejected) Kind() Kind       { return KindActionRejected }
func (Notice) Kind() Kind               { return KindNotice }

func (WebviewReady) message()         {}
func (AddAgent) message()             {}
func (CloseAgent) message()           {}
func (SaveLayout) message()           {}
func (ImportLayout) message()         {}
func (ExportLayout) message()         {}
func (ResetToDefaultLayout) message() {}
func (PlaceFurniture) message()       {}
func (MoveFurniture) message()        {}
func (RemoveFurniture) message()      {}
func (RecolorFurniture) message()     {}
func (PaintTile) message()            {}
func (TextInserted) message()         {}
func (FocusChanged) message()         {}
func (SelectionChanged) message()     {}
func (TerminalChanged) message()      {}
func (TerminalOutput) message()       {}
func (ExistingAgents) message()       {}
func (AgentCreated) message()         {}
func (AgentClosed) message()          {}
func (AgentStatus) message()          {}
func (LayoutLoaded) message()         {}
func (TilesRendered) message()        {}
func (FurnitureCatalog) message()     {}
func (LayoutExported) message()       {}
func (ActionRejected) message()       {}
func (Notice) message()               {}

type Direction int

const (
	FromSurface Direction = iota + 1
	FromHost
	ToSurface
)

// Direction reports which side sends messages of kind k; 0 for unknown kinds.
func (k Kind) Direction() Direction {
	switch k {
	case KindWebviewReady, KindAddAgent, KindCloseAgent, KindSaveLayout, KindImportLayout,
		KindExportLayout, KindResetToDefaultLayout, KindPlaceFurniture, KindMoveFurniture,
		KindRemoveFurniture, KindRecolorFurniture, KindPaintTile:
		return FromSurface
	case KindTextInserted, KindFocusChanged, KindSelectionChanged, KindTerminalChanged, KindTerminalOutput:
		return FromHost
	case KindExistingAgents, KindAgentCreated, KindAgentClosed, KindAgentStatus, KindLayoutLoaded,
		KindTilesRendered, KindFurnitureCatalog, KindLayoutExported, KindActionRejected, KindNotice:
		return ToSurface
	}
	return 0
}
