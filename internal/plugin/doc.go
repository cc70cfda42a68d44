// Package plugin defines the contract every pipeline stage implements and
// the registry through which implementations are made loadable.
//
// Implementations are compiled in. Each one is described by a Factory: a
// constructor, an optional destructor, its category and the interface
// version it was written against. The graph manager instantiates a Plugin
// per graph occurrence, so plugin code never has to guard its own state
// against concurrent use: a given instance belongs to exactly one chain and
// is never processed concurrently with itself.
//
// Modules register their factories through the Module interface, the same
// way the application wires every compiled-in module at startup:
//
//	reg := plugin.NewRegistry()
//	for _, m := range modules {
//	    m.Register(reg)
//	}
package plugin
