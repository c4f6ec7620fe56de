package hclplan

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level blocks of a plan file. Unknown blocks are
// left in Remain and ignored.
type fileRoot struct {
	Plans  []*planBlock `hcl:"plan,block"`
	Remain hcl.Body     `hcl:",remain"`
}

type planBlock struct {
	Name        string         `hcl:"name,label"`
	Description string         `hcl:"description,optional"`
	Init        *callBlock     `hcl:"init,block"`
	Stages      []*stageBlock  `hcl:"stage,block"`
	Output      hcl.Expression `hcl:"output,optional"`
	Finally     *callBlock     `hcl:"finally,block"`
}

type callBlock struct {
	Handler string         `hcl:"handler"`
	Args    hcl.Expression `hcl:"args,optional"`
	Into    string         `hcl:"into,optional"`
}

type stageBlock struct {
	Kind string `hcl:"kind,label"`
	Name string `hcl:"name,label"`

	When hcl.Expression `hcl:"when,optional"`

	Handler string         `hcl:"handler,optional"`
	Args    hcl.Expression `hcl:"args,optional"`

	Command      *commandBlock  `hcl:"command,block"`
	ForEach      hcl.Expression `hcl:"for_each,optional"`
	Numa         bool           `hcl:"numa,optional"`
	Into         string         `hcl:"into,optional"`
	AllowFailure bool           `hcl:"allow_failure,optional"`
}

type commandBlock struct {
	Name          hcl.Expression `hcl:"name"`
	Args          hcl.Expression `hcl:"args,optional"`
	Capture       hcl.Expression `hcl:"capture,optional"`
	Emit          hcl.Expression `hcl:"emit,optional"`
	PrintableArgs hcl.Expression `hcl:"printable_args,optional"`
}
