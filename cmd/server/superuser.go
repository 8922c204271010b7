package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/uptrace/bun"
	"golang.org/x/term"

	"github.com/jananicare/accounts"
)

// prompter reads answers from a terminal, or from plain lines when stdin is piped
type prompter struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	terminal bool
}

func newPrompter(in *os.File, out io.Writer) *prompter {
	fd := int(in.Fd())
	return &prompter{
		in:       bufio.NewReader(in),
		out:      out,
		fd:       fd,
		terminal: term.IsTerminal(fd),
	}
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) secret(label string) (string, error) {
	if !p.terminal {
		return p.ask(label)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	raw, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func createSuperuser(ctx context.Context, db *bun.DB, in *os.File, out io.Writer, logger accounts.Logger) error {
	p := newPrompter(in, out)

	var payload accounts.SignupPayload
	var err error
	if payload.Username, err = p.ask("Username"); err != nil {
		return err
	}
	if payload.Email, err = p.ask("Email address"); err != nil {
		return err
	}
	if payload.Password, err = p.secret("Password"); err != nil {
		return err
	}
	if payload.Password2, err = p.secret("Password (again)"); err != nil {
		return err
	}

	repo := accounts.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	handler := accounts.NewCreateSuperuserHandler(repo).WithLogger(logger)
	err = handler.Execute(ctx, accounts.CreateSuperuserMessage{
		Payload: payload,
		OnResponse: func(account *accounts.Account) {
			fmt.Fprintf(out, "Superuser %s created successfully.\n", account.Username)
		},
	})

	if fields, ok := accounts.AsFieldErrors(err); ok {
		for field, message := range fields {
			fmt.Fprintf(out, "Error: %s: %s\n", field, message)
		}
	}
	return err
}
