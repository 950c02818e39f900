// Package console implements the server operator's line-oriented command
// interface.
package console

import (
	"errors"

	"github.com/mgrant26/clubcthulu/internal/core"
)

// ErrPermission is returned when the executor's privilege level is below a
// command's requirement.
var ErrPermission = errors.New("insufficient privilege to run command")

// RunFunc is a command body. args are the whitespace-split tokens after
// the command name.
type RunFunc func(args []string, executor *core.Client, cctx *Context) error

// Command pairs a name with its callback and minimum privilege. The
// callback is fixed at construction and unreachable from outside Run.
type Command struct {
	name      string
	params    []string
	privilege int
	run       RunFunc
}

// NewCommand builds a command. params name the expected arguments for the
// help listing.
func NewCommand(name string, privilege int, run RunFunc, params ...string) *Command {
	return &Command{name: name, params: params, privilege: privilege, run: run}
}

// Name returns the primary name the command is invoked with.
func (c *Command) Name() string { return c.name }

// Params returns the parameter names shown by the commands listing.
func (c *Command) Params() []string { return c.params }

// Privilege returns the minimum privilege level to run the command.
func (c *Command) Privilege() int { return c.privilege }

// Run checks the executor's privilege and invokes the callback.
func (c *Command) Run(args []string, executor *core.Client, cctx *Context) error {
	if c.privilege > 0 && executor != nil && c.privilege > executor.Privilege() {
		return ErrPermission
	}
	return c.run(args, executor, cctx)
}
