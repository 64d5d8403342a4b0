package office

import (
	"errors"
	"io/fs"

	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/office/placement"
	"github.com/umfhero/pixel-agents/internal/persistence/sharedstore"
	"github.com/umfhero/pixel-agents/internal/protocol"
)

// send encodes m for one surface. A full outbound queue drops the frame;
// the surface resyncs on its next webviewReady.
func (o *Office) send(to string, m protocol.Message) {
	out, ok := o.surfaces[to]
	if !ok {
		return
	}
	b, err := protocol.Encode(m)
	if err != nil {
		o.log.Printf("encode %s: %v", m.Kind(), err)
		return
	}
	select {
	case out <- b:
	default:
		o.stats.dropped++
		o.log.Printf("surface %s: queue full, dropped %s", to, m.Kind())
	}
}

func (o *Office) broadcast(m protocol.Message, except string) {
	b, err := protocol.Encode(m)
	if err != nil {
		o.log.Printf("encode %s: %v", m.Kind(), err)
		return
	}
	for id, out := range o.surfaces {
		if id == except {
			continue
		}
		select {
		case out <- b:
		default:
			o.stats.dropped++
			o.log.Printf("surface %s: queue full, dropped %s", id, m.Kind())
		}
	}
}

func (o *Office) reject(to string, action protocol.Kind, code, message string) {
	o.stats.rejected++
	o.send(to, protocol.ActionRejected{Action: action, Code: code, Message: message})
}

func storeNotice(err error) protocol.Notice {
	return protocol.Notice{
		Level:   protocol.LevelError,
		Code:    protocol.ErrStoreIO,
		Message: "Layout could not be saved: " + err.Error(),
	}
}

// codeFor maps a domain error onto a wire error code.
func codeFor(err error) string {
	switch {
	case errors.Is(err, placement.ErrCollision):
		return protocol.ErrConflict
	case errors.Is(err, placement.ErrOutOfBounds), errors.Is(err, placement.ErrSurface):
		return protocol.ErrInvalidTarget
	case errors.Is(err, placement.ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, placement.ErrUnknownType), errors.Is(err, placement.ErrGroupMember),
		errors.Is(err, placement.ErrBadTint), errors.Is(err, placement.ErrBadTile):
		return protocol.ErrBadRequest
	case errors.Is(err, layout.ErrInvalidLayout), errors.Is(err, layout.ErrMigration),
		errors.Is(err, layout.ErrFutureVersion):
		return protocol.ErrLayoutInvalid
	case errors.Is(err, sharedstore.ErrNotExist):
		return protocol.ErrStoreIO
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return protocol.ErrStoreIO
	}
	return protocol.ErrInternal
}
