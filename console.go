package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mgrant26/clubcthulu/internal/console"
	"github.com/mgrant26/clubcthulu/internal/core"
)

// consoleLoop feeds operator input lines to the command processor until r
// runs out. EOF runs the end command so closing the terminal still shuts
// the server down cleanly.
func consoleLoop(r io.Reader, proc *console.Processor, executor *core.Client, out io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		handled, err := proc.Parse(line, executor)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if !handled && strings.TrimSpace(line) != "" {
			fmt.Fprintln(out, "Invalid Command. type `commands` for a list of commands.")
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("console input", "err", err)
		return
	}
	if _, err := proc.Run("end", nil, executor); err != nil {
		slog.Error("console end", "err", err)
	}
}
