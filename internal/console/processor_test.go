package console

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mgrant26/clubcthulu/internal/core"
	"github.com/mgrant26/clubcthulu/internal/protocol"
)

type nopSender struct{}

func (nopSender) Send(addr *net.UDPAddr, resp *protocol.Response, retries int) *protocol.Response {
	return resp
}

func TestRunRefusesLowPrivilege(t *testing.T) {
	t.Parallel()

	ran := false
	p := NewProcessor(&Context{Out: io.Discard})
	p.AddCommand(NewCommand("promote", 10, func(args []string, executor *core.Client, cctx *Context) error {
		ran = true
		return nil
	}))

	executor := core.NewClient(uuid.New(), "newbie", 0)
	ok, err := p.Run("promote", nil, executor)
	if !ok {
		t.Fatalf("Run() did not recognize the command")
	}
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("Run() error = %v, want ErrPermission", err)
	}
	if ran {
		t.Fatalf("callback ran for an executor below the required privilege")
	}
}

func TestRunConsoleExecutorBypassesPrivilege(t *testing.T) {
	t.Parallel()

	ran := false
	p := NewProcessor(&Context{Out: io.Discard})
	p.AddCommand(NewCommand("promote", 10, func(args []string, executor *core.Client, cctx *Context) error {
		ran = true
		return nil
	}))

	ok, err := p.Run("promote", nil, nil)
	if !ok || err != nil {
		t.Fatalf("Run() = %v, %v, want true, nil", ok, err)
	}
	if !ran {
		t.Fatalf("callback did not run for the console executor")
	}
}

func TestParseResolvesAliases(t *testing.T) {
	t.Parallel()

	var got []string
	p := NewProcessor(&Context{Out: io.Discard})
	p.AddCommand(NewCommand("greet", 0, func(args []string, executor *core.Client, cctx *Context) error {
		got = args
		return nil
	}))
	p.SetAlias("greet", "hi")

	ok, err := p.Parse("HI There friend", nil)
	if !ok || err != nil {
		t.Fatalf("Parse() = %v, %v, want true, nil", ok, err)
	}
	if len(got) != 2 || got[0] != "There" || got[1] != "friend" {
		t.Fatalf("args = %v, want [There friend]", got)
	}
}

func TestParseUnknownAndBlank(t *testing.T) {
	t.Parallel()

	p := NewProcessor(&Context{Out: io.Discard})
	for _, line := range []string{"", "   ", "nosuchcommand arg"} {
		ok, err := p.Parse(line, nil)
		if ok || err != nil {
			t.Fatalf("Parse(%q) = %v, %v, want false, nil", line, ok, err)
		}
	}
}

func TestCommandsListing(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	p := NewProcessor(&Context{Out: out})
	ok, err := p.Parse("commands", nil)
	if !ok || err != nil {
		t.Fatalf("Parse(commands) = %v, %v, want true, nil", ok, err)
	}

	text := out.String()
	if !strings.HasPrefix(text, "-=COMMANDS=-\n") {
		t.Fatalf("listing missing header:\n%s", text)
	}
	for _, want := range []string{"commands", "end", "kick <name>", "listplayers", "printqueue"} {
		if !strings.Contains(text, want+"\n") {
			t.Fatalf("listing missing %q:\n%s", want, text)
		}
	}
}

func TestKickCommand(t *testing.T) {
	t.Parallel()

	reg := core.NewRegistry(nopSender{}, core.DefaultDCTime)
	var kicked []string
	reg.OnKick(func(addr *net.UDPAddr, message string) {
		kicked = append(kicked, message)
	})

	c := core.NewClient(uuid.New(), "Mallory", 0)
	c.SetAddr(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000})
	if !reg.Add(c) {
		t.Fatalf("Add() = false, want true")
	}

	out := &bytes.Buffer{}
	p := NewProcessor(&Context{Registry: reg, Out: out})

	// Console input carries no executor and reports SERVER as the kicker.
	ok, err := p.Parse("kick mallory", nil)
	if !ok || err != nil {
		t.Fatalf("Parse(kick) = %v, %v, want true, nil", ok, err)
	}
	if len(kicked) != 1 || kicked[0] != "Kicked by SERVER" {
		t.Fatalf("kick messages = %v, want [Kicked by SERVER]", kicked)
	}
	if reg.GetByName("mallory") != nil {
		t.Fatalf("client still registered after kick")
	}
}

func TestKickCommandNamesExecutor(t *testing.T) {
	t.Parallel()

	reg := core.NewRegistry(nopSender{}, core.DefaultDCTime)
	var gotMessage string
	reg.OnKick(func(addr *net.UDPAddr, message string) {
		gotMessage = message
	})

	c := core.NewClient(uuid.New(), "Mallory", 0)
	c.SetAddr(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40001})
	if !reg.Add(c) {
		t.Fatalf("Add() = false, want true")
	}

	p := NewProcessor(&Context{Registry: reg, Out: io.Discard})
	admin := core.NewClient(uuid.New(), "Admin", 99)
	ok, err := p.Parse("kick Mallory", admin)
	if !ok || err != nil {
		t.Fatalf("Parse(kick) = %v, %v, want true, nil", ok, err)
	}
	if gotMessage != "Kicked by Admin" {
		t.Fatalf("kick message = %q, want %q", gotMessage, "Kicked by Admin")
	}
}

func TestKickCommandBadArguments(t *testing.T) {
	t.Parallel()

	reg := core.NewRegistry(nopSender{}, core.DefaultDCTime)
	out := &bytes.Buffer{}
	p := NewProcessor(&Context{Registry: reg, Out: out})

	if ok, err := p.Parse("kick", nil); !ok || err != nil {
		t.Fatalf("Parse(kick) = %v, %v, want true, nil", ok, err)
	}
	if !strings.Contains(out.String(), "Not enough arguments") {
		t.Fatalf("missing usage notice, got %q", out.String())
	}

	out.Reset()
	if ok, err := p.Parse("kick ghost", nil); !ok || err != nil {
		t.Fatalf("Parse(kick ghost) = %v, %v, want true, nil", ok, err)
	}
	if !strings.Contains(out.String(), "ghost is not logged in.") {
		t.Fatalf("missing unknown-player notice, got %q", out.String())
	}
}
