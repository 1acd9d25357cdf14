// Package useradmin implements the useradmin command: creating accounts and
// setting passwords from a terminal, without going through the web forms.
package useradmin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/flagx"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

// Modes accepted by -mode.
const (
	ModeCreate      = "create"
	ModeSetPassword = "set-password"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

// AccountService is the part of services.UserService the command needs.
type AccountService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	SetPassword(ctx context.Context, email, password string) error
}

// Options are the command line options of useradmin.
type Options struct {
	Email string
	Mode  string
}

// ParseFlags reads -email and -mode from args. Server flags in args are
// ignored so the command can share a command line with the server config.
func ParseFlags(args []string) (Options, error) {
	o := Options{Mode: ModeCreate}

	fs := flag.NewFlagSet("useradmin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.Email, "email", "", "account email")
	fs.StringVar(&o.Mode, "mode", o.Mode, "create | set-password")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email", "-mode"})); err != nil {
		return o, err
	}

	if o.Mode != ModeCreate && o.Mode != ModeSetPassword {
		return o, fmt.Errorf("unknown mode %q", o.Mode)
	}
	return o, nil
}

// Run asks for whatever Options do not provide, then creates the account or
// sets its password.
func Run(ctx context.Context, o Options, fd int, in *bufio.Reader, w io.Writer, svc AccountService) error {
	var err error

	if o.Email == "" {
		o.Email, err = GetSimpleText(in, "Email", w)
		if err != nil {
			return err
		}
	}

	pw, err := GetPassword(fd, in, "Password", w)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword(fd, in, "Repeat password", w)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return ErrPasswordMismatch
	}

	switch o.Mode {
	case ModeSetPassword:
		if err := svc.SetPassword(ctx, o.Email, string(pw)); err != nil {
			return err
		}
		fmt.Fprintf(w, "Password updated for %s\n", o.Email)
	default:
		u, err := svc.Register(ctx, o.Email, string(pw))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Created user %s (%s)\n", u.Email(), u.ID())
	}

	return nil
}
