package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jrsteele09/go-feed-server/cmd/feedctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		commands.Globals

		Signup  commands.SignupCmd `cmd:"" help:"Create an account and request a verification email"`
		Verify  commands.VerifyCmd `cmd:"" help:"Confirm an account with the emailed 6-digit code"`
		Resend  commands.ResendCmd `cmd:"" help:"Send the verification email again"`
		Login   commands.LoginCmd  `cmd:"" help:"Sign in with email and password"`
		Logout  commands.LogoutCmd `cmd:"" help:"Sign out and clear the stored session"`
		Whoami  commands.WhoamiCmd `cmd:"" help:"Show the signed-in user"`
		Watch   commands.WatchCmd  `cmd:"" help:"Follow session changes until interrupted"`
		Version kong.VersionFlag   `help:"Print version"`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("feedctl"),
		kong.Description("Command line client for the feed auth flows."),
		kong.Vars{
			"version": version,
			"jar":     commands.DefaultJarPath(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&cli.Globals)
	cmd.FatalIfErrorf(err)
}
