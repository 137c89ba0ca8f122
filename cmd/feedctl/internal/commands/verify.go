package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-feed-server/codeentry"
	"github.com/jrsteele09/go-feed-server/verification"
)

type VerifyCmd struct {
	Email string    `arg:"" help:"Email address the code was sent to"`
	Code  string    `help:"Code to submit; prompts when empty"`
	In    io.Reader `kong:"-"`
}

// Run feeds stdin through the same code entry the web page uses: each line is pasted,
// "resend" asks for a new email and an empty line gives up.
func (c *VerifyCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, jar, client, err := globals.session(ctx)
	if err != nil {
		return err
	}
	machine := verification.New(nil)

	var outcome verification.Outcome
	entry := codeentry.New(
		func(ctx context.Context, code string) error {
			outcome = machine.VerifyCode(ctx, client, c.Email, code)
			if outcome.Kind != verification.KindError {
				return nil
			}
			if outcome.Err != nil {
				return outcome.Err
			}
			return errors.New(outcome.Reason)
		},
		codeentry.WithResend(func(ctx context.Context) error {
			return actionError(globals.gateway().ResendVerification(ctx, jar, c.Email))
		}),
	)

	if c.Code != "" {
		return c.report(globals, entry, entry.Paste(ctx, c.Code), outcome)
	}

	in := c.In
	if in == nil {
		in = os.Stdin
	}
	scanner := bufio.NewScanner(in)
	for {
		globals.printf("Enter the %d-digit code sent to %s (%s left, \"resend\" for a new one): ", codeentry.Length, c.Email, entry.Remaining().Round(time.Second))
		if !scanner.Scan() {
			return errors.New("no code entered")
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			return errors.New("no code entered")
		case "resend":
			if err := entry.Resend(ctx); err != nil {
				globals.printf("%s\n", entry.Message())
				continue
			}
			globals.printf("A new code is on its way\n")
			continue
		}

		state := entry.Paste(ctx, line)
		if state == codeentry.StateVerified {
			return c.report(globals, entry, state, outcome)
		}
		if state == codeentry.StateError {
			globals.printf("%s\n", entry.Message())
		}
	}
}

func (c *VerifyCmd) report(globals *Globals, entry *codeentry.Entry, state codeentry.State, out verification.Outcome) error {
	if state != codeentry.StateVerified {
		if msg := entry.Message(); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("code must be %d digits", codeentry.Length)
	}
	globals.printf("Verified. Signed in as ")
	printUser(globals, out.User)
	return nil
}
