package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/mgrant26/clubcthulu/internal/store"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("clubcthulu server %s\n", Version)
		return true
	case "users":
		return cliUsers(dbPath)
	case "grant":
		return cliGrant(args[1:], dbPath)
	default:
		return false
	}
}

func cliUsers(dbPath string) bool {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(users) == 0 {
		fmt.Println("No users found.")
		return true
	}
	for _, u := range users {
		fmt.Printf("  [%d] %s (%s)\n", u.Privilege, u.Name, u.ID)
	}
	return true
}

func cliGrant(args []string, dbPath string) bool {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: clubcthulu grant <name> <level>\n")
		os.Exit(1)
	}
	level, err := strconv.Atoi(args[1])
	if err != nil || level < 0 {
		fmt.Fprintf(os.Stderr, "invalid privilege level %q\n", args[1])
		os.Exit(1)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.SetPrivilege(context.Background(), args[0], level); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			fmt.Fprintf(os.Stderr, "no user named %q\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
	fmt.Printf("Granted privilege %d to %s\n", level, args[0])
	return true
}
