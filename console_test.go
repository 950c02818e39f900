package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mgrant26/clubcthulu/internal/console"
	"github.com/mgrant26/clubcthulu/internal/core"
)

func consoleSetup(out *bytes.Buffer) (*console.Processor, *bool) {
	called := false
	proc := console.NewProcessor(&console.Context{
		Shutdown: func() { called = true },
		Out:      out,
	})
	return proc, &called
}

func TestConsoleLoopRunsCommands(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	proc, _ := consoleSetup(&out)
	executor := core.NewClient(uuid.New(), "SERVER", 99)

	consoleLoop(strings.NewReader("commands\n"), proc, executor, &out)

	if !strings.Contains(out.String(), "-=COMMANDS=-") {
		t.Errorf("output missing command listing:\n%s", out.String())
	}
}

func TestConsoleLoopUnknownCommandPrintsHint(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	proc, _ := consoleSetup(&out)
	executor := core.NewClient(uuid.New(), "SERVER", 99)

	consoleLoop(strings.NewReader("frobnicate\n"), proc, executor, &out)

	if !strings.Contains(out.String(), "Invalid Command. type `commands` for a list of commands.") {
		t.Errorf("output missing invalid-command hint:\n%s", out.String())
	}
}

func TestConsoleLoopBlankLinesIgnored(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	proc, _ := consoleSetup(&out)
	executor := core.NewClient(uuid.New(), "SERVER", 99)

	consoleLoop(strings.NewReader("\n   \n"), proc, executor, &out)

	if strings.Contains(out.String(), "Invalid Command") {
		t.Errorf("blank lines should not print the hint:\n%s", out.String())
	}
}

func TestConsoleLoopEOFRunsEnd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	proc, called := consoleSetup(&out)
	executor := core.NewClient(uuid.New(), "SERVER", 99)

	consoleLoop(strings.NewReader(""), proc, executor, &out)

	if !*called {
		t.Error("EOF should run the end command")
	}
}

func TestConsoleLoopPrivilegeRefusalPrinted(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	proc, called := consoleSetup(&out)
	executor := core.NewClient(uuid.New(), "guest", 0)

	consoleLoop(strings.NewReader("end\n"), proc, executor, &out)

	if *called {
		t.Error("privilege 0 executor should not shut the server down")
	}
	if !strings.Contains(out.String(), console.ErrPermission.Error()) {
		t.Errorf("output missing permission refusal:\n%s", out.String())
	}
}
