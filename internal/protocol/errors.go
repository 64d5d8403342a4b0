package protocol

const (
	// Undecodable frame.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	ErrBadRequest    = "E_BAD_REQUEST"
	ErrConflict      = "E_CONFLICT"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNotFound      = "E_NOT_FOUND"
	ErrStoreIO       = "E_STORE_IO"
	ErrLayoutInvalid = "E_LAYOUT_INVALID"
	ErrAssetMissing  = "E_ASSET_MISSING"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrConflict:        {},
	ErrInvalidTarget:   {},
	ErrNotFound:        {},
	ErrStoreIO:         {},
	ErrLayoutInvalid:   {},
	ErrAssetMissing:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Notice levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)
