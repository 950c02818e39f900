package console

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mgrant26/clubcthulu/internal/core"
	"github.com/mgrant26/clubcthulu/internal/relay"
)

// Context gives command callbacks access to the running server without a
// global.
type Context struct {
	Registry *core.Registry
	Relay    *relay.Relay
	Shutdown func()
	Out      io.Writer
}

// Processor parses command lines and dispatches them. Commands and
// aliases are registered at startup; parsing happens on the input
// goroutine only.
type Processor struct {
	commands map[string]*Command
	aliases  map[string]string
	cctx     *Context
}

// NewProcessor returns a processor preloaded with the built-in commands
// and their aliases.
func NewProcessor(cctx *Context) *Processor {
	p := &Processor{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
		cctx:     cctx,
	}
	for _, cmd := range p.builtins() {
		p.AddCommand(cmd)
	}
	for alias, name := range map[string]string{
		"list":   "listplayers",
		"lp":     "listplayers",
		"online": "listplayers",
		"stop":   "end",
		"die":    "end",
		"q":      "end",
		"quit":   "end",
	} {
		p.SetAlias(name, alias)
	}
	return p
}

// AddCommand registers a command under its name.
func (p *Processor) AddCommand(cmd *Command) {
	p.commands[cmd.Name()] = cmd
}

// SetAlias makes alias invoke the command registered as name.
func (p *Processor) SetAlias(name, alias string) {
	p.aliases[alias] = name
}

// Commands returns the registered commands sorted by name.
func (p *Processor) Commands() []*Command {
	out := make([]*Command, 0, len(p.commands))
	for _, cmd := range p.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Run looks a command up by name, then by alias, and executes it. It
// reports false when nothing matches.
func (p *Processor) Run(name string, args []string, executor *core.Client) (bool, error) {
	cmd, ok := p.commands[name]
	if !ok {
		cmd, ok = p.commands[p.aliases[name]]
		if !ok {
			return false, nil
		}
	}
	return true, cmd.Run(args, executor, p.cctx)
}

// Parse splits an input line into command name and arguments and runs it.
// Blank lines report false.
func (p *Processor) Parse(line string, executor *core.Client) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	return p.Run(strings.ToLower(fields[0]), fields[1:], executor)
}

func (p *Processor) builtins() []*Command {
	return []*Command{
		NewCommand("commands", 0, func(args []string, executor *core.Client, cctx *Context) error {
			fmt.Fprintln(cctx.Out, "-=COMMANDS=-")
			for _, cmd := range p.Commands() {
				parts := make([]string, 0, len(cmd.Params()))
				for _, param := range cmd.Params() {
					parts = append(parts, "<"+param+">")
				}
				fmt.Fprintln(cctx.Out, strings.TrimSpace(cmd.Name()+" "+strings.Join(parts, " ")))
			}
			return nil
		}),
		NewCommand("end", 99, func(args []string, executor *core.Client, cctx *Context) error {
			fmt.Fprintln(cctx.Out, "Stopping server")
			if cctx.Shutdown != nil {
				cctx.Shutdown()
			}
			return nil
		}),
		NewCommand("printqueue", 99, func(args []string, executor *core.Client, cctx *Context) error {
			fmt.Fprintf(cctx.Out, "%v\n", cctx.Relay.Waiting())
			return nil
		}),
		NewCommand("listplayers", 0, func(args []string, executor *core.Client, cctx *Context) error {
			fmt.Fprintf(cctx.Out, "%v\n", cctx.Registry.List())
			return nil
		}),
		NewCommand("kick", 10, func(args []string, executor *core.Client, cctx *Context) error {
			if len(args) < 1 {
				fmt.Fprintln(cctx.Out, "Not enough arguments")
				return nil
			}
			target := cctx.Registry.GetByName(args[0])
			if target == nil {
				fmt.Fprintf(cctx.Out, "%s is not logged in.\n", args[0])
				return nil
			}
			by := "SERVER"
			if executor != nil {
				by = executor.Name()
			}
			cctx.Registry.Kick(target, "Kicked by "+by)
			return nil
		}, "name"),
	}
}
