package office

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/umfhero/pixel-agents/internal/office/assets"
	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/office/presence"
	"github.com/umfhero/pixel-agents/internal/office/tiles"
	"github.com/umfhero/pixel-agents/internal/persistence/archive"
	"github.com/umfhero/pixel-agents/internal/persistence/indexdb"
	"github.com/umfhero/pixel-agents/internal/persistence/sharedstore"
	"github.com/umfhero/pixel-agents/internal/protocol"
)

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// manualScheduler fires timers only when the test says so.
type manualScheduler struct{ timers []*manualTimer }

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) presence.Timer {
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) fireAll() {
	for _, t := range s.timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

type memRoster struct{ saved []int }

func (m *memRoster) LoadRoster(context.Context) ([]int, error) { return m.saved, nil }
func (m *memRoster) SaveRoster(_ context.Context, ids []int) error {
	m.saved = append([]int(nil), ids...)
	return nil
}

type memIndex struct{ audits []indexdb.AuditEntry }

func (m *memIndex) WriteAudit(e indexdb.AuditEntry) { m.audits = append(m.audits, e) }

type fixture struct {
	o      *Office
	dir    string
	store  *sharedstore.Store
	sched  *manualScheduler
	roster *memRoster
	index  *memIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		store:  sharedstore.New(filepath.Join(dir, "layout.json")),
		sched:  &manualScheduler{},
		roster: &memRoster{},
		index:  &memIndex{},
	}
	o, err := New(Config{
		Presence:    presence.DefaultConfig(),
		BackupsDir:  filepath.Join(dir, "backups"),
		BackupsKeep: 5,
	}, Deps{
		Store:     f.store,
		Roster:    f.roster,
		Index:     f.index,
		Scheduler: f.sched,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.o = o
	return f
}

func (f *fixture) surface(id string) chan []byte {
	out := make(chan []byte, 64)
	f.o.handleJoin(SurfaceJoin{ID: id, Out: out})
	return out
}

func drain(t *testing.T, out chan []byte) []protocol.Message {
	t.Helper()
	var msgs []protocol.Message
	for {
		select {
		case b := <-out:
			m, err := protocol.Decode(b)
			if err != nil {
				t.Fatalf("decode %s: %v", b, err)
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func kinds(msgs []protocol.Message) []protocol.Kind {
	out := make([]protocol.Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind()
	}
	return out
}

func TestBoot_SeedsMissingStoreAndSendsInitialState(t *testing.T) {
	f := newFixture(t)
	f.o.Boot(context.Background())
	if !f.store.Exists() {
		t.Fatalf("default layout not written")
	}
	if len(f.index.audits) != 1 || f.index.audits[0].Action != "init" {
		t.Fatalf("audits=%+v", f.index.audits)
	}

	out := f.surface("s1")
	f.o.handleSurface(SurfaceMessage{From: "s1", Msg: protocol.WebviewReady{}})
	msgs := drain(t, out)
	want := []protocol.Kind{protocol.KindFurnitureCatalog, protocol.KindLayoutLoaded, protocol.KindExistingAgents}
	if got := kinds(msgs); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("initial frames=%v want %v", got, want)
	}
	ll := msgs[1].(protocol.LayoutLoaded)
	if ll.Layout.Cols != 20 || len(ll.WallMasks) != 20*12 {
		t.Fatalf("layoutLoaded cols=%d masks=%d", ll.Layout.Cols, len(ll.WallMasks))
	}
	// Top-left corner of the border: east and south neighbours are walls.
	if ll.WallMasks[0] != 2|4 {
		t.Fatalf("corner mask=%d", ll.WallMasks[0])
	}
}

func TestBoot_InvalidStoreFallsBackWithNotice(t *testing.T) {
	f := newFixture(t)
	garbage := []byte(`{"version":7,"cols":1}`)
	if err := os.WriteFile(f.store.Path(), garbage, 0o644); err != nil {
		t.Fatal(err)
	}
	f.o.Boot(context.Background())
	if f.o.layout.Cols != 20 {
		t.Fatalf("default layout not used")
	}
	raw, _ := os.ReadFile(f.store.Path())
	if string(raw) != string(garbage) {
		t.Fatalf("unreadable store was overwritten")
	}

	out := f.surface("s1")
	f.o.handleSurface(SurfaceMessage{From: "s1", Msg: protocol.WebviewReady{}})
	msgs := drain(t, out)
	last, ok := msgs[len(msgs)-1].(protocol.Notice)
	if !ok || last.Code != protocol.ErrLayoutInvalid {
		t.Fatalf("want layout notice, got %v", kinds(msgs))
	}
}

func TestBoot_AssetProblemsBecomeNotice(t *testing.T) {
	f := newFixture(t)
	f.o.deps.AssetProblems = []assets.Problem{{Asset: "walls.json[3]", Err: errors.New("ragged rows")}}
	f.o.Boot(context.Background())

	out := f.surface("s1")
	f.o.handleSurface(SurfaceMessage{From: "s1", Msg: protocol.WebviewReady{}})
	msgs := drain(t, out)
	n, ok := msgs[len(msgs)-1].(protocol.Notice)
	if !ok || n.Code != protocol.ErrAssetMissing || !strings.Contains(n.Message, "walls.json[3]") {
		t.Fatalf("want asset notice, got %+v", msgs[len(msgs)-1])
	}
}

func TestAgents_CreateCloseAndRestore(t *testing.T) {
	f := newFixture(t)
	f.o.Boot(context.Background())
	a, b := f.surface("a"), f.surface("b")

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.AddAgent{}})
	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.AddAgent{}})
	msgs := drain(t, b)
	if len(msgs) != 4 {
		t.Fatalf("b got %v", kinds(msgs))
	}
	if c := msgs[2].(protocol.AgentCreated); c.ID != 2 {
		t.Fatalf("second agent id=%d", c.ID)
	}
	if s := msgs[3].(protocol.AgentStatus); s.Status != "idle" {
		t.Fatalf("new agent status=%s", s.Status)
	}
	drain(t, a)

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.CloseAgent{ID: 1}})
	if got := kinds(drain(t, b)); len(got) != 1 || got[0] != protocol.KindAgentClosed {
		t.Fatalf("close broadcast=%v", got)
	}
	if len(f.roster.saved) != 1 || f.roster.saved[0] != 2 {
		t.Fatalf("persisted roster=%v", f.roster.saved)
	}

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.CloseAgent{ID: 9}})
	rej := drain(t, a)
	if len(rej) != 1 || rej[0].(protocol.ActionRejected).Code != protocol.ErrNotFound {
		t.Fatalf("close unknown: %v", rej)
	}
	if len(drain(t, b)) != 0 {
		t.Fatalf("rejection leaked to another surface")
	}

	g := newFixture(t)
	g.roster.saved = []int{2, 5}
	g.o.Boot(context.Background())
	if ids := g.o.roster.IDs(); len(ids) != 2 || ids[1] != 5 {
		t.Fatalf("restored ids=%v", ids)
	}
}

func TestPresence_BroadcastsSharedState(t *testing.T) {
	f := newFixture(t)
	f.o.Boot(context.Background())
	out := f.surface("s")
	f.o.handleSurface(SurfaceMessage{From: "s", Msg: protocol.AddAgent{}})
	f.o.handleSurface(SurfaceMessage{From: "s", Msg: protocol.AddAgent{}})
	drain(t, out)

	f.o.handleActivity(protocol.TextInserted{})
	f.o.handleActivity(protocol.TextInserted{})
	f.o.handleActivity(protocol.SelectionChanged{Lines: 1})
	msgs := drain(t, out)
	if len(msgs) != 2 {
		t.Fatalf("want one status per agent, got %v", kinds(msgs))
	}
	for _, m := range msgs {
		if s := m.(protocol.AgentStatus); s.Status != "typing" {
			t.Fatalf("status=%s", s.Status)
		}
	}

	f.sched.fireAll()
	msgs = drain(t, out)
	if len(msgs) != 2 || msgs[0].(protocol.AgentStatus).Status != "idle" {
		t.Fatalf("decay broadcast=%v", msgs)
	}
}

func TestEdits_RejectionGoesOnlyToSender(t *testing.T) {
	f := newFixture(t)
	f.o.Boot(context.Background())
	a, b := f.surface("a"), f.surface("b")

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.PlaceFurniture{FurnitureType: "desk", Col: 9, Row: 8}})
	if got := kinds(drain(t, b)); len(got) != 1 || got[0] != protocol.KindLayoutLoaded {
		t.Fatalf("place broadcast=%v", got)
	}
	drain(t, a)
	n := len(f.o.layout.Furniture)

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.PlaceFurniture{FurnitureType: "desk", Col: 10, Row: 8}})
	msgs := drain(t, a)
	if len(msgs) != 1 {
		t.Fatalf("sender got %v", kinds(msgs))
	}
	rej := msgs[0].(protocol.ActionRejected)
	if rej.Code != protocol.ErrConflict || rej.Action != protocol.KindPlaceFurniture {
		t.Fatalf("rejection=%+v", rej)
	}
	if len(drain(t, b)) != 0 || len(f.o.layout.Furniture) != n {
		t.Fatalf("rejected edit leaked")
	}

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.PaintTile{Col: 10, Row: 0, Tile: tiles.Void}})
	if got := kinds(drain(t, a)); len(got) != 1 || got[0] != protocol.KindActionRejected {
		t.Fatalf("painting under a wall clock: %v", got)
	}

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.AgentCreated{ID: 1}})
	msgs = drain(t, a)
	if len(msgs) != 1 || msgs[0].(protocol.ActionRejected).Code != protocol.ErrBadRequest {
		t.Fatalf("outbound kind from surface: %v", msgs)
	}

	f.o.publishMetrics()
	if m := f.o.Metrics(); m.RejectedTotal != 3 || m.Surfaces != 2 || m.Furniture != n {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestSave_SelfEchoSuppressedExternalDelivered(t *testing.T) {
	f := newFixture(t)
	f.o.Boot(context.Background())
	f.o.handleFileChanged() // echo of the seeding write
	a := f.surface("a")

	l := layout.Default()
	l.SetTile(1, 1, tiles.Floor6, nil)
	rec, _ := layout.Serialize(l)
	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.SaveLayout{Layout: rec}})
	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("saver got its own layout back: %v", kinds(got))
	}
	backups, _ := archive.List(filepath.Join(f.dir, "backups"))
	if len(backups) != 1 {
		t.Fatalf("backups=%d want 1", len(backups))
	}

	f.o.handleFileChanged()
	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("own write re-rendered: %v", kinds(got))
	}

	other := sharedstore.New(f.store.Path())
	b := layout.Default()
	b.SetTile(2, 2, tiles.Floor7, nil)
	if _, err := other.Write(b); err != nil {
		t.Fatal(err)
	}
	f.o.handleFileChanged()
	msgs := drain(t, a)
	if len(msgs) != 1 {
		t.Fatalf("external change frames=%v", kinds(msgs))
	}
	got := msgs[0].(protocol.LayoutLoaded).Layout
	if got.Kind(2, 2) != tiles.Floor7 || f.o.layout.Kind(2, 2) != tiles.Floor7 {
		t.Fatalf("external layout not applied")
	}
	last := f.index.audits[len(f.index.audits)-1]
	if last.Source != indexdb.SourceExternal {
		t.Fatalf("last audit=%+v", last)
	}
}

func TestSave_StoreFailureNotifiesSenderAndStillBroadcasts(t *testing.T) {
	f := newFixture(t)
	f.o.Boot(context.Background())
	f.o.handleFileChanged()
	a := f.surface("a")
	b := f.surface("b")

	// A directory where the layout file should be makes the rename fail.
	if err := os.Remove(f.store.Path()); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(f.store.Path(), 0o755); err != nil {
		t.Fatal(err)
	}
	audits := len(f.index.audits)

	l := layout.Default()
	l.SetTile(1, 1, tiles.Floor6, nil)
	rec, _ := layout.Serialize(l)
	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.SaveLayout{Layout: rec}})

	got := drain(t, a)
	if len(got) != 1 {
		t.Fatalf("sender frames=%v", kinds(got))
	}
	if n, ok := got[0].(protocol.Notice); !ok || n.Code != protocol.ErrStoreIO {
		t.Fatalf("sender got %+v", got[0])
	}
	others := drain(t, b)
	if len(others) == 0 || others[0].Kind() != protocol.KindLayoutLoaded {
		t.Fatalf("other surface frames=%v", kinds(others))
	}
	if others[0].(protocol.LayoutLoaded).Layout.Kind(1, 1) != tiles.Floor6 {
		t.Fatalf("broadcast layout missing the edit")
	}
	if f.o.layout.Kind(1, 1) != tiles.Floor6 {
		t.Fatalf("in-memory layout lost the edit")
	}
	if m := f.store.Mode(); m != sharedstore.ModeNormal {
		t.Fatalf("store mode=%v after failed write", m)
	}
	if len(f.index.audits) != audits {
		t.Fatalf("failed write was audited")
	}
}

func TestImport_MigratesAndBroadcastsToAll(t *testing.T) {
	f := newFixture(t)
	f.o.Boot(context.Background())
	a, b := f.surface("a"), f.surface("b")

	v0 := json.RawMessage(`{"version":0,"cols":3,"rows":3,"tiles":[0,0,0,0,1,0,0,0,0]}`)
	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.ImportLayout{Layout: v0}})
	for name, out := range map[string]chan []byte{"a": a, "b": b} {
		msgs := drain(t, out)
		if len(msgs) != 1 {
			t.Fatalf("%s got %v", name, kinds(msgs))
		}
		l := msgs[0].(protocol.LayoutLoaded).Layout
		if l.Version != layout.CurrentVersion || len(l.TileColors) != 9 {
			t.Fatalf("%s: version=%d colors=%d", name, l.Version, len(l.TileColors))
		}
	}

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.ImportLayout{Layout: json.RawMessage(`{"version":3}`)}})
	msgs := drain(t, a)
	if len(msgs) != 1 || msgs[0].(protocol.ActionRejected).Code != protocol.ErrLayoutInvalid {
		t.Fatalf("future import: %v", msgs)
	}

	f.o.handleSurface(SurfaceMessage{From: "a", Msg: protocol.ExportLayout{}})
	msgs = drain(t, a)
	exp := msgs[0].(protocol.LayoutExported)
	l, err := layout.Load(exp.Layout)
	if err != nil || l.Cols != 3 {
		t.Fatalf("export: %v %+v", err, l)
	}

	f.o.handleSurface(SurfaceMessage{From: "b", Msg: protocol.ResetToDefaultLayout{}})
	if f.o.layout.Cols != 20 {
		t.Fatalf("reset did not restore default")
	}
	stored, err := f.store.Read()
	if err != nil || stored.Cols != 20 {
		t.Fatalf("reset not persisted: %v", err)
	}
}

func TestRun_ProcessesChannels(t *testing.T) {
	f := newFixture(t)
	f.o.Boot(context.Background())
	out := make(chan []byte, 16)
	f.o.handleJoin(SurfaceJoin{ID: "s", Out: out})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- f.o.Run(ctx) }()

	next := func() protocol.Message {
		t.Helper()
		select {
		case b := <-out:
			m, err := protocol.Decode(b)
			if err != nil {
				t.Fatal(err)
			}
			return m
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for a frame")
			return nil
		}
	}

	f.o.Inbox() <- SurfaceMessage{From: "s", Msg: protocol.AddAgent{}}
	if m := next(); m.Kind() != protocol.KindAgentCreated {
		t.Fatalf("first frame=%s", m.Kind())
	}
	next()

	f.o.Activity() <- protocol.TerminalOutput{}
	if s, ok := next().(protocol.AgentStatus); !ok || s.Status != "terminal" {
		t.Fatalf("activity frame=%+v", s)
	}

	f.o.Leave() <- "s"
	f.o.Stop()
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
