package office

import (
	"fmt"

	"github.com/umfhero/pixel-agents/internal/office/autotile"
	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/office/presence"
	"github.com/umfhero/pixel-agents/internal/persistence/indexdb"
	"github.com/umfhero/pixel-agents/internal/persistence/journal"
	"github.com/umfhero/pixel-agents/internal/protocol"
)

func (o *Office) handleJoin(j SurfaceJoin) {
	if j.ID == "" || j.Out == nil {
		return
	}
	o.surfaces[j.ID] = j.Out
}

func (o *Office) handleLeave(id string) {
	delete(o.surfaces, id)
}

// handleSurface dispatches one request from a rendering surface. Every
// message kind has a case; kinds a surface may not send are rejected.
func (o *Office) handleSurface(m SurfaceMessage) {
	switch msg := m.Msg.(type) {
	case protocol.WebviewReady:
		o.sendInitial(m.From)

	case protocol.AddAgent:
		id := o.roster.Add()
		o.saveRoster()
		o.record(journal.Entry{Kind: journal.KindAgent, Action: "created", Agent: id})
		o.broadcast(protocol.AgentCreated{ID: id}, "")
		o.broadcast(protocol.AgentStatus{ID: id, Status: string(o.presence.State())}, "")

	case protocol.CloseAgent:
		if !o.roster.Remove(msg.ID) {
			o.reject(m.From, msg.Kind(), protocol.ErrNotFound, fmt.Sprintf("no agent %d", msg.ID))
			return
		}
		o.saveRoster()
		o.record(journal.Entry{Kind: journal.KindAgent, Action: "closed", Agent: msg.ID})
		o.broadcast(protocol.AgentClosed{ID: msg.ID}, "")

	case protocol.SaveLayout:
		l, ok := o.acceptRecord(m.From, msg.Kind(), msg.Layout)
		if !ok {
			return
		}
		o.layout = l
		if err := o.persist(l, "save"); err != nil {
			o.send(m.From, storeNotice(err))
		}
		o.broadcastLayout(m.From)

	case protocol.ImportLayout:
		l, ok := o.acceptRecord(m.From, msg.Kind(), msg.Layout)
		if !ok {
			return
		}
		o.layout = l
		if err := o.persist(l, "import"); err != nil {
			o.send(m.From, storeNotice(err))
		}
		o.broadcastLayout("")

	case protocol.ExportLayout:
		b, err := layout.Serialize(o.layout)
		if err != nil {
			o.reject(m.From, msg.Kind(), protocol.ErrInternal, err.Error())
			return
		}
		o.send(m.From, protocol.LayoutExported{Layout: b})

	case protocol.ResetToDefaultLayout:
		o.layout = layout.Default()
		if err := o.persist(o.layout, "reset"); err != nil {
			o.send(m.From, storeNotice(err))
		}
		o.broadcastLayout("")

	case protocol.PlaceFurniture:
		_, err := o.validator.Place(o.layout, msg.FurnitureType, msg.Col, msg.Row)
		o.afterEdit(m.From, msg.Kind(), err)

	case protocol.MoveFurniture:
		o.afterEdit(m.From, msg.Kind(), o.validator.Move(o.layout, msg.UID, msg.Col, msg.Row))

	case protocol.RemoveFurniture:
		_, err := o.validator.Remove(o.layout, msg.UID)
		o.afterEdit(m.From, msg.Kind(), err)

	case protocol.RecolorFurniture:
		o.afterEdit(m.From, msg.Kind(), o.validator.Recolor(o.layout, msg.UID, msg.Color))

	case protocol.PaintTile:
		o.afterEdit(m.From, msg.Kind(), o.validator.PaintTile(o.layout, msg.Col, msg.Row, msg.Tile, msg.Color))

	case protocol.TextInserted, protocol.FocusChanged, protocol.SelectionChanged,
		protocol.TerminalChanged, protocol.TerminalOutput:
		o.handleActivity(msg)

	case protocol.ExistingAgents, protocol.AgentCreated, protocol.AgentClosed, protocol.AgentStatus,
		protocol.LayoutLoaded, protocol.TilesRendered, protocol.FurnitureCatalog, protocol.LayoutExported,
		protocol.ActionRejected, protocol.Notice:
		o.reject(m.From, msg.Kind(), protocol.ErrBadRequest, "host-to-surface message sent by a surface")

	default:
		o.log.Printf("surface %s: unhandled message %T", m.From, m.Msg)
	}
}

// handleActivity feeds one host activity signal into the presence machine.
func (o *Office) handleActivity(m protocol.Message) {
	var ev presence.Event
	switch msg := m.(type) {
	case protocol.TextInserted:
		ev = presence.Event{Kind: presence.TextInserted}
	case protocol.FocusChanged:
		ev = presence.Event{Kind: presence.FocusChanged}
	case protocol.SelectionChanged:
		ev = presence.Event{Kind: presence.SelectionChanged, Lines: msg.Lines}
	case protocol.TerminalChanged:
		ev = presence.Event{Kind: presence.TerminalChanged}
	case protocol.TerminalOutput:
		ev = presence.Event{Kind: presence.TerminalOutput}
	default:
		o.log.Printf("activity feed: ignoring %s", m.Kind())
		return
	}
	o.presence.Observe(ev, o.now())
}

// onPresence is the presence machine's emit callback.
func (o *Office) onPresence(s presence.State) {
	o.record(journal.Entry{Kind: journal.KindPresence, State: string(s)})
	for _, id := range o.roster.IDs() {
		o.broadcast(protocol.AgentStatus{ID: id, Status: string(s)}, "")
	}
}

// handleFileChanged handles one watcher notification for the shared store.
func (o *Office) handleFileChanged() {
	l, external, err := o.deps.Store.Changed()
	if err != nil {
		o.log.Printf("shared layout changed but could not be loaded: %v", err)
		o.broadcast(protocol.Notice{
			Level:   protocol.LevelWarning,
			Code:    codeFor(err),
			Message: "Another window saved a layout that could not be loaded: " + err.Error(),
		}, "")
		return
	}
	if !external {
		return
	}
	o.stats.external++
	o.layout = l
	if data, err := layout.Serialize(l); err != nil {
		o.log.Printf("external layout not audited: %v", err)
	} else {
		o.audit("external", indexdb.SourceExternal, l, data, "")
	}
	o.broadcastLayout("")
}

func (o *Office) sendInitial(to string) {
	o.send(to, protocol.FurnitureCatalog{Digest: o.deps.Catalog.Digest, Entries: o.deps.Catalog.Entries})
	o.sendLayout(to)
	o.send(to, protocol.ExistingAgents{IDs: o.roster.IDs(), Status: string(o.presence.State())})
	for _, n := range o.notices {
		o.send(to, n)
	}
}

func (o *Office) layoutMessages() []protocol.Message {
	l := o.layout
	msgs := []protocol.Message{protocol.LayoutLoaded{Layout: l, WallMasks: autotile.Masks(l.Tiles, l.Grid())}}
	if o.hasSprite {
		msgs = append(msgs, protocol.TilesRendered{
			Cols:  l.Cols,
			Rows:  l.Rows,
			Cells: o.renderer.Resolve(l.Tiles, l.TileColors, l.Grid()),
		})
	}
	return msgs
}

func (o *Office) sendLayout(to string) {
	for _, m := range o.layoutMessages() {
		o.send(to, m)
	}
}

// broadcastLayout sends the current layout to every surface except one.
func (o *Office) broadcastLayout(except string) {
	for _, m := range o.layoutMessages() {
		o.broadcast(m, except)
	}
}

// afterEdit reports an in-memory layout edit. Edits are saved to the shared
// store only on saveLayout.
func (o *Office) afterEdit(from string, action protocol.Kind, err error) {
	if err != nil {
		o.reject(from, action, codeFor(err), err.Error())
		return
	}
	o.broadcastLayout("")
}

// acceptRecord loads a layout record from a surface and checks its
// furniture against the catalog.
func (o *Office) acceptRecord(from string, action protocol.Kind, raw []byte) (*layout.Layout, bool) {
	if len(raw) == 0 {
		o.reject(from, action, protocol.ErrBadRequest, "missing layout")
		return nil, false
	}
	l, err := layout.Load(raw)
	if err != nil {
		o.reject(from, action, codeFor(err), err.Error())
		return nil, false
	}
	if errs := o.validator.Check(l); len(errs) > 0 {
		o.reject(from, action, protocol.ErrLayoutInvalid, errs[0].Error())
		return nil, false
	}
	return l, true
}

func (o *Office) saveRoster() {
	if o.deps.Roster == nil {
		return
	}
	ctx, cancel := contextWithTimeout()
	defer cancel()
	if err := o.deps.Roster.SaveRoster(ctx, o.roster.IDs()); err != nil {
		o.log.Printf("roster save failed: %v", err)
	}
}
