package server

import (
	"github.com/nfrund/evmarket/internal/chat"
	"github.com/nfrund/evmarket/internal/module"
)

// AppModules returns the application modules in boot order.
func AppModules() []module.Module {
	return []module.Module{
		chat.New(),
	}
}
