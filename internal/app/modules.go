package app

import (
	"github.com/vk/gridrouter/internal/registry"
	"github.com/vk/gridrouter/modules/echo"
	"github.com/vk/gridrouter/modules/filewatch"
	"github.com/vk/gridrouter/modules/filewriter"
	"github.com/vk/gridrouter/modules/generator"
	"github.com/vk/gridrouter/modules/kafka"
	"github.com/vk/gridrouter/modules/nats"
	"github.com/vk/gridrouter/modules/socketio"
	"github.com/vk/gridrouter/modules/stats"
	"github.com/vk/gridrouter/modules/stdin"
	"github.com/vk/gridrouter/modules/tcp"
	"github.com/vk/gridrouter/modules/udp"
)

// coreModules is the definitive list of all modules that are compiled into
// the gridrouter binary.
var coreModules = []registry.Module{
	&echo.Module{},
	&generator.Module{},
	&stdin.Module{},
	&udp.Module{},
	&tcp.Module{},
	&filewatch.Module{},
	&filewriter.Module{},
	&stats.Module{},
	&socketio.Module{},
	&kafka.Module{},
	&nats.Module{},
}
