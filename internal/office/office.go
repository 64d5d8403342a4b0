// Package office is the host-side context object. It owns the in-memory
// layout, the agent roster, the presence machine and the shared store
// handle; all of them are touched only from the Run goroutine.
package office

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/umfhero/pixel-agents/internal/office/assets"
	"github.com/umfhero/pixel-agents/internal/office/autotile"
	"github.com/umfhero/pixel-agents/internal/office/catalogs"
	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/office/placement"
	"github.com/umfhero/pixel-agents/internal/office/presence"
	"github.com/umfhero/pixel-agents/internal/office/roster"
	"github.com/umfhero/pixel-agents/internal/persistence/indexdb"
	"github.com/umfhero/pixel-agents/internal/persistence/journal"
	"github.com/umfhero/pixel-agents/internal/persistence/sharedstore"
	"github.com/umfhero/pixel-agents/internal/protocol"
)

type Config struct {
	Presence    presence.Config
	BackupsDir  string
	BackupsKeep int
}

// Index receives layout audit rows. *indexdb.SQLiteIndex implements it.
type Index interface {
	WriteAudit(indexdb.AuditEntry)
}

// Journal receives durable event records. *journal.Writer implements it.
type Journal interface {
	Append(journal.Entry) error
}

// Deps are the collaborators. Only Store is required.
type Deps struct {
	Catalog   *catalogs.Catalog
	Sprites   *autotile.SpriteSet
	Store     *sharedstore.Store
	Roster    roster.Store
	Index     Index
	Journal   Journal
	Scheduler presence.Scheduler
	Logger    *log.Logger
	Now       func() time.Time

	// AssetProblems are the sprites assets.Load skipped; surfaced as one notice.
	AssetProblems []assets.Problem
}

// SurfaceJoin registers a rendering surface. Out receives encoded frames;
// the office never closes it.
type SurfaceJoin struct {
	ID  string
	Out chan []byte
}

type SurfaceMessage struct {
	From string
	Msg  protocol.Message
}

type Office struct {
	cfg  Config
	deps Deps
	log  *log.Logger
	now  func() time.Time

	layout    *layout.Layout
	validator *placement.Validator
	renderer  *autotile.Renderer
	hasSprite bool
	roster    *roster.Roster
	presence  *presence.Machine

	surfaces map[string]chan []byte
	notices  []protocol.Notice
	stats    counters
	metrics  atomic.Value

	join        chan SurfaceJoin
	leave       chan string
	inbox       chan SurfaceMessage
	activity    chan protocol.Message
	fileChanged chan struct{}
	decay       chan func()
	stop        chan struct{}
	done        chan struct{}
}

var errNoStore = errors.New("office: shared store is required")

func New(cfg Config, deps Deps) (*Office, error) {
	if deps.Store == nil {
		return nil, errNoStore
	}
	if deps.Catalog == nil {
		deps.Catalog = catalogs.Default()
	}
	if deps.Sprites == nil {
		deps.Sprites = &autotile.SpriteSet{}
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.Writer(), "[office] ", log.LstdFlags|log.Lmicroseconds)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	o := &Office{
		cfg:       cfg,
		deps:      deps,
		log:       deps.Logger,
		now:       deps.Now,
		layout:    layout.Default(),
		validator: placement.New(deps.Catalog),
		renderer:  autotile.NewRenderer(deps.Sprites),
		hasSprite: hasSprites(deps.Sprites),
		roster:    roster.New(),
		surfaces:  map[string]chan []byte{},

		join:        make(chan SurfaceJoin, 16),
		leave:       make(chan string, 16),
		inbox:       make(chan SurfaceMessage, 256),
		activity:    make(chan protocol.Message, 1024),
		fileChanged: make(chan struct{}, 1),
		decay:       make(chan func(), 4),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	sched := deps.Scheduler
	if sched == nil {
		sched = loopScheduler{o: o}
	}
	o.presence = presence.New(cfg.Presence, sched, o.onPresence)
	o.publishMetrics()
	return o, nil
}

func hasSprites(set *autotile.SpriteSet) bool {
	for _, s := range set.Walls {
		if s != nil {
			return true
		}
	}
	for _, s := range set.Floors {
		if s != nil {
			return true
		}
	}
	return false
}

func (o *Office) Join() chan<- SurfaceJoin          { return o.join }
func (o *Office) Leave() chan<- string              { return o.leave }
func (o *Office) Inbox() chan<- SurfaceMessage      { return o.inbox }
func (o *Office) Activity() chan<- protocol.Message { return o.activity }
func (o *Office) Done() <-chan struct{}             { return o.done }

// FileChanged is called by the store watcher. Notifications that arrive
// while one is pending collapse into it.
func (o *Office) FileChanged() {
	select {
	case o.fileChanged <- struct{}{}:
	default:
	}
}

// Boot restores the roster and loads the shared layout. A missing store is
// seeded with the default layout; an unreadable one leaves the default in
// memory and queues a notice for every surface. The store watcher must
// already be running so the seeding write's echo is observed.
func (o *Office) Boot(ctx context.Context) {
	if o.deps.Roster != nil {
		ids, err := o.deps.Roster.LoadRoster(ctx)
		if err != nil {
			o.log.Printf("roster load failed: %v", err)
		} else {
			o.roster.Restore(ids)
		}
	}

	l, err := o.deps.Store.Read()
	switch {
	case err == nil:
		o.layout = l
		for _, perr := range o.validator.Check(l) {
			o.log.Printf("layout %s: %v", o.deps.Store.Path(), perr)
		}
	case errors.Is(err, sharedstore.ErrNotExist):
		o.log.Printf("no shared layout at %s, writing default", o.deps.Store.Path())
		o.layout = layout.Default()
		if err := o.persist(o.layout, "init"); err != nil {
			o.notices = append(o.notices, storeNotice(err))
		}
	default:
		o.log.Printf("shared layout unreadable, using default: %v", err)
		o.layout = layout.Default()
		o.notices = append(o.notices, protocol.Notice{
			Level:   protocol.LevelWarning,
			Code:    codeFor(err),
			Message: "Saved layout could not be loaded; showing the default layout. " + err.Error(),
		})
	}

	if p := o.deps.AssetProblems; len(p) > 0 {
		o.notices = append(o.notices, protocol.Notice{
			Level:   protocol.LevelWarning,
			Code:    protocol.ErrAssetMissing,
			Message: fmt.Sprintf("%d sprite assets could not be loaded; the first was %v", len(p), p[0]),
		})
	}
}
