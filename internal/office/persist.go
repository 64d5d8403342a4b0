package office

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/persistence/archive"
	"github.com/umfhero/pixel-agents/internal/persistence/indexdb"
	"github.com/umfhero/pixel-agents/internal/persistence/journal"
	"github.com/umfhero/pixel-agents/internal/persistence/sharedstore"
)

// persist backs up the current store content, then writes l. A failed
// backup is logged and does not block the write.
func (o *Office) persist(l *layout.Layout, action string) error {
	backup := ""
	if o.cfg.BackupsDir != "" {
		prev, err := o.deps.Store.ReadRaw()
		switch {
		case err == nil:
			p, berr := archive.Backup(o.cfg.BackupsDir, prev, o.cfg.BackupsKeep)
			if berr != nil {
				o.log.Printf("layout backup failed: %v", berr)
			}
			backup = p
		case !errors.Is(err, sharedstore.ErrNotExist):
			o.log.Printf("layout backup skipped: %v", err)
		}
	}

	data, err := o.deps.Store.Write(l)
	if err != nil {
		o.log.Printf("layout %s failed: %v", action, err)
		return err
	}
	o.audit(action, indexdb.SourceLocal, l, data, backup)
	return nil
}

func (o *Office) audit(action, source string, l *layout.Layout, data []byte, backup string) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	at := o.now()
	if o.deps.Index != nil {
		o.deps.Index.WriteAudit(indexdb.AuditEntry{
			At:        at,
			Source:    source,
			Action:    action,
			Digest:    digest,
			Cols:      l.Cols,
			Rows:      l.Rows,
			Furniture: len(l.Furniture),
			Backup:    backup,
		})
	}
	o.record(journal.Entry{At: at, Kind: journal.KindLayout, Action: action, Source: source, Digest: digest})
}

func (o *Office) record(e journal.Entry) {
	if o.deps.Journal == nil {
		return
	}
	if e.At.IsZero() {
		e.At = o.now()
	}
	if err := o.deps.Journal.Append(e); err != nil {
		o.log.Printf("journal append failed: %v", err)
	}
}

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Second)
}
