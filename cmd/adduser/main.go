// Command adduser creates an account from the terminal, bypassing the
// web signup form. Useful for bootstrapping a fresh database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"potrosnja/internal/auth"
	"potrosnja/internal/cli"
)

func main() {
	fs := flag.NewFlagSet("adduser", flag.ExitOnError)
	firstName := fs.String("first-name", "", "user's first name")
	lastName := fs.String("last-name", "", "user's last name")
	username := fs.String("username", "", "login username")
	_ = fs.Parse(os.Args[1:])

	if *firstName == "" || *lastName == "" || *username == "" {
		fmt.Fprintln(os.Stderr, "adduser: -first-name, -last-name and -username are required")
		fs.Usage()
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adduser: read password: %v\n", err)
		os.Exit(1)
	}

	svc := auth.NewService(repo, cfg.SessionTTL)
	user, err := svc.Register(context.Background(), *firstName, *lastName, *username, string(password))
	if err != nil {
		fmt.Fprintf(os.Stderr, "adduser: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created user %q (id %d)\n", user.Username, user.ID)
}
