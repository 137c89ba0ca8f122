package commands

import (
	"context"

	"github.com/jrsteele09/go-feed-server/gateway"
)

type SignupCmd struct {
	Email    string `arg:"" help:"Email address"`
	Username string `help:"Public username" required:""`
	FullName string `help:"Display name"`
	Password string `help:"Password" env:"FEEDCTL_PASSWORD" required:""`
}

func (c *SignupCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, jar, _, err := globals.session(ctx)
	if err != nil {
		return err
	}
	res := globals.gateway().SignUp(ctx, jar, gateway.SignUpInput{
		Email:    c.Email,
		Password: c.Password,
		Username: c.Username,
		FullName: c.FullName,
	})
	if err := actionError(res); err != nil {
		return err
	}
	globals.printf("Check %s for a verification code, then run: feedctl verify %s\n", c.Email, c.Email)
	return nil
}

type ResendCmd struct {
	Email string `arg:"" help:"Email address"`
}

func (c *ResendCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, jar, _, err := globals.session(ctx)
	if err != nil {
		return err
	}
	if err := actionError(globals.gateway().ResendVerification(ctx, jar, c.Email)); err != nil {
		return err
	}
	globals.printf("Verification email sent to %s\n", c.Email)
	return nil
}

type LoginCmd struct {
	Email    string `arg:"" help:"Email address"`
	Password string `help:"Password" env:"FEEDCTL_PASSWORD" required:""`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, jar, _, err := globals.session(ctx)
	if err != nil {
		return err
	}
	res := globals.gateway().SignIn(ctx, jar, c.Email, c.Password)
	if err := actionError(res); err != nil {
		return err
	}
	globals.printf("Signed in as ")
	printUser(globals, res.User)
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, jar, _, err := globals.session(ctx)
	if err != nil {
		return err
	}
	if err := actionError(globals.gateway().SignOut(ctx, jar)); err != nil {
		return err
	}
	globals.printf("Signed out\n")
	return nil
}
