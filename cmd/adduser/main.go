// Command adduser creates an account from the command line using the same
// validation and hashing as the signup endpoint.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pennytrail/internal/account"
	"pennytrail/internal/auth"
	"pennytrail/internal/config"
	"pennytrail/internal/storage"
	"pennytrail/internal/validation"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := newAddUserCmd(stdin)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

func newAddUserCmd(stdin io.Reader) *cobra.Command {
	v := config.NewViper()
	var name, email, password, envFile string

	cmd := &cobra.Command{
		Use:           "adduser --name <name> --email <email> [--password <password>] [--db <dsn>] [--env-file <path>]",
		Short:         "Create a Penny Trail account",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(*cobra.Command, []string) error {
			return config.LoadEnvFile(envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdout := cmd.OutOrStdout()
			if name == "" || email == "" {
				fmt.Fprintln(stdout, "Usage:", cmd.UseLine())
				fmt.Fprint(stdout, cmd.Flags().FlagUsages())
				return errors.New("missing required flags: name, email")
			}

			if password == "" {
				fmt.Fprint(stdout, "Password: ")
				var err error
				password, err = readPassword(stdin)
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				fmt.Fprintln(stdout) // Print newline after password input
			}
			if strings.TrimSpace(password) == "" {
				return errors.New("password cannot be empty")
			}

			return createUser(cmd.Context(), stdout, v.GetString(config.KeyDatabase), v.GetInt(config.KeyBcryptCost),
				validation.SignupInput{Name: name, Email: email, Password: password})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "password (optional, will prompt if omitted)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional .env file to load")
	cmd.Flags().Int("bcrypt-cost", auth.DefaultCost, "bcrypt cost")
	cmd.Flags().String("db", "pennytrail.db", "database connection string (SQLite path or postgres:// URL)")
	if err := v.BindPFlag(config.KeyDatabase, cmd.Flags().Lookup("db")); err != nil {
		panic(err)
	}
	if err := v.BindPFlag(config.KeyBcryptCost, cmd.Flags().Lookup("bcrypt-cost")); err != nil {
		panic(err)
	}
	return cmd
}

func createUser(ctx context.Context, stdout io.Writer, dsn string, cost int, in validation.SignupInput) error {
	store, err := storage.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	// adduser never logs anyone in, so no token issuer is needed.
	accounts := account.NewService(store, auth.NewBcryptHasher(auth.WithCost(cost)), nil)
	user, err := accounts.Signup(ctx, in)
	switch {
	case errors.Is(err, storage.ErrDuplicateEmail):
		return fmt.Errorf("user %s already exists", in.Email)
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", user.Email, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
