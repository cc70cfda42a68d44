package app

import (
	"github.com/vk/framegrid/internal/plugin"
	"github.com/vk/framegrid/modules/capture"
	"github.com/vk/framegrid/modules/colorconv"
	"github.com/vk/framegrid/modules/invert"
	"github.com/vk/framegrid/modules/pngsink"
	"github.com/vk/framegrid/modules/stats"
	"github.com/vk/framegrid/modules/testpattern"
)

// coreModules is the definitive list of all plugin implementations that are
// compiled into the framegrid binary. Manifests pick among them by name.
var coreModules = []plugin.Module{
	&testpattern.Module{},
	&capture.Module{},
	&colorconv.Module{},
	&invert.Module{},
	&pngsink.Module{},
	&stats.Module{},
}
