package app

import (
	"github.com/specialistvlad/proofgridgo/internal/registry"
	"github.com/specialistvlad/proofgridgo/modules/envvars"
	"github.com/specialistvlad/proofgridgo/modules/hostinfo"
	"github.com/specialistvlad/proofgridgo/modules/numaecho"
	"github.com/specialistvlad/proofgridgo/modules/print"
	"github.com/specialistvlad/proofgridgo/modules/workdir"
)

// coreModules is the definitive list of all modules that are compiled into
// the proofgridgo binary.
var coreModules = []registry.Module{
	&envvars.Module{},
	&print.Module{},
	&workdir.Module{},
	&numaecho.Module{},
	&hostinfo.Module{},
}
