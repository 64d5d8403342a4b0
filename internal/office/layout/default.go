package layout

import (
	_ "embed"
	"fmt"
)

//go:embed default_layout.json
var defaultLayout []byte

// Default returns a fresh copy of the bundled default room.
func Default() *Layout {
	l, err := Load(defaultLayout)
	if err != nil {
		panic(fmt.Sprintf("bundled default layout: %v", err))
	}
	return l
}

// DefaultRecord returns the raw bundled record.
func DefaultRecord() []byte {
	return append([]byte(nil), defaultLayout...)
}
