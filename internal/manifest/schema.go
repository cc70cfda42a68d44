package manifest

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// pluginBlock represents a `plugin` block from a manifest file.
type pluginBlock struct {
	Label          string     `hcl:"name,label"`
	Implementation string     `hcl:"implementation,optional"`
	Description    string     `hcl:"description,optional"`
	Params         *cty.Value `hcl:"params,optional"`
}

// fileRoot is used to decode all top-level blocks of a manifest file.
type fileRoot struct {
	Plugins []*pluginBlock `hcl:"plugin,block"`
	Remain  hcl.Body       `hcl:",remain"`
}
