// Package cli implements the headless subcommands: login, logout, whoami
// and refresh.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/fragmede/astroshare/internal/idp"
	"github.com/fragmede/astroshare/internal/session"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrUnknownCommand = errors.New("unknown command")

// Sessions is what the commands need from the session manager.
type Sessions interface {
	Login(ctx context.Context, creds session.PasswordCredentials) error
	LoginWithProvider(ctx context.Context, credential string) error
	CompleteProviderLogin(ctx context.Context, newUsername string) error
	AbandonProviderLogin()
	Logout(ctx context.Context) error
	RefreshUserData(ctx context.Context) error
	Current() session.Session
	AccessTokenExpiry(ctx context.Context) (time.Time, bool, error)
}

// App runs one subcommand.
type App struct {
	sessions Sessions
	provider idp.CredentialSource
	reader   *bufio.Reader
	out      io.Writer
	log      zerolog.Logger
}

// New creates the command runner. provider may be nil when provider login
// is not configured.
func New(sessions Sessions, provider idp.CredentialSource, in io.Reader, out io.Writer, log zerolog.Logger) *App {
	return &App{
		sessions: sessions,
		provider: provider,
		reader:   bufio.NewReader(in),
		out:      out,
		log:      log,
	}
}

// Run executes args[0] with the remaining arguments.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: none given", ErrUnknownCommand)
	}
	switch args[0] {
	case "login":
		return a.login(ctx, args[1:])
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "refresh":
		return a.refresh(ctx)
	default:
		return fmt.Errorf("%w: %s (want login, logout, whoami or refresh)", ErrUnknownCommand, args[0])
	}
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	userName := fs.String("u", "", "user name")
	google := fs.Bool("google", false, "log in with Google")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *google {
		return a.loginWithProvider(ctx)
	}

	name := strings.TrimSpace(*userName)
	if name == "" {
		var err error
		if name, err = a.prompt("Username"); err != nil {
			return err
		}
	}
	fmt.Fprint(a.out, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	creds := session.PasswordCredentials{UserName: name, Password: string(pw)}
	if err := creds.Validate(); err != nil {
		return err
	}
	if err := a.sessions.Login(ctx, creds); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\n", a.sessions.Current().UserName())
	return nil
}

func (a *App) loginWithProvider(ctx context.Context) error {
	if a.provider == nil {
		return idp.ErrNoCredential
	}
	credential, err := a.provider.Credential(ctx)
	if err != nil {
		return fmt.Errorf("obtaining provider credential: %w", err)
	}

	err = a.sessions.LoginWithProvider(ctx, credential)
	for errors.Is(err, session.ErrUsernameChoiceRequired) || errors.Is(err, session.ErrInvalidUsername) {
		fmt.Fprintln(a.out, "That username is taken. Choose another (empty to cancel).")
		name, perr := a.prompt("New username")
		if perr != nil || name == "" {
			a.sessions.AbandonProviderLogin()
			if perr != nil {
				return perr
			}
			return errors.New("login cancelled")
		}
		err = a.sessions.CompleteProviderLogin(ctx, name)
	}
	if err != nil {
		a.sessions.AbandonProviderLogin()
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (Google)\n", a.sessions.Current().UserName())
	return nil
}

func (a *App) logout(ctx context.Context) error {
	err := a.sessions.Logout(ctx)
	if errors.Is(err, session.ErrNoRefreshToken) {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) whoami(ctx context.Context) error {
	s := a.sessions.Current()
	if !s.LoggedIn() {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	fmt.Fprintln(a.out, figure.NewFigure(s.UserName(), "cybermedium", true).String())

	id := s.Identity()
	kind := "password"
	if s.IsGoogleUser() {
		kind = "google"
	}
	fmt.Fprintf(a.out, "user:    %s\n", id.UserName)
	fmt.Fprintf(a.out, "id:      %s\n", id.UserID)
	fmt.Fprintf(a.out, "account: %s\n", kind)
	if id.ProfilePictureURL != "" {
		fmt.Fprintf(a.out, "avatar:  %s\n", id.ProfilePictureURL)
	}

	exp, ok, err := a.sessions.AccessTokenExpiry(ctx)
	switch {
	case err != nil:
		a.log.Debug().Err(err).Msg("token expiry unavailable")
	case ok:
		fmt.Fprintf(a.out, "token:   expires %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *App) refresh(ctx context.Context) error {
	if err := a.sessions.RefreshUserData(ctx); err != nil {
		return err
	}
	s := a.sessions.Current()
	if !s.LoggedIn() {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	fmt.Fprintf(a.out, "Refreshed %s\n", s.UserName())
	return nil
}

func (a *App) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
