// Package codeentry models the 6-digit verification code form: one field per digit,
// auto-submit once all digits are present, paste fill, and a resend that re-arms the
// validity window.
package codeentry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-feed-server/gateway"
)

const (
	Length   = 6
	Validity = 10 * time.Minute
)

type State string

const (
	StateEntering  State = "entering"
	StateVerifying State = "verifying"
	StateVerified  State = "verified"
	StateError     State = "error"
)

// VerifyFunc submits a complete code. The error is kept for logging only; the user
// always sees the same message.
type VerifyFunc func(ctx context.Context, code string) error

type ResendFunc func(ctx context.Context) error

type Entry struct {
	mu        sync.Mutex
	digits    [Length]rune
	focus     int
	state     State
	message   string
	lastErr   error
	expiresAt time.Time
	verify    VerifyFunc
	resend    ResendFunc
	now       func() time.Time
}

type Option func(*Entry)

func WithNowFunc(now func() time.Time) Option {
	return func(e *Entry) {
		e.now = now
	}
}

func WithResend(fn ResendFunc) Option {
	return func(e *Entry) {
		e.resend = fn
	}
}

func New(verify VerifyFunc, opts ...Option) *Entry {
	e := &Entry{verify: verify, state: StateEntering, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.expiresAt = e.now().Add(Validity)
	return e
}

// Input sets the digit at index. More than one character is treated as a paste.
// Non-digits are ignored. The code is submitted when the last empty field is filled.
func (e *Entry) Input(ctx context.Context, index int, value string) State {
	if len([]rune(value)) > 1 {
		return e.Paste(ctx, value)
	}

	e.mu.Lock()
	if !e.editableLocked() || index < 0 || index >= Length {
		defer e.mu.Unlock()
		return e.state
	}
	r := []rune(value)
	if len(r) != 1 || !isDigit(r[0]) {
		defer e.mu.Unlock()
		return e.state
	}
	e.digits[index] = r[0]
	if index < Length-1 {
		e.focus = index + 1
	}
	return e.submitIfCompleteLocked(ctx)
}

// Paste fills the fields from the first digit onwards with the digits found in text.
func (e *Entry) Paste(ctx context.Context, text string) State {
	e.mu.Lock()
	if !e.editableLocked() {
		defer e.mu.Unlock()
		return e.state
	}

	var digits []rune
	for _, r := range text {
		if isDigit(r) {
			digits = append(digits, r)
		}
		if len(digits) == Length {
			break
		}
	}
	if len(digits) == 0 {
		defer e.mu.Unlock()
		return e.state
	}

	e.digits = [Length]rune{}
	copy(e.digits[:], digits)
	e.focus = min(len(digits), Length-1)
	return e.submitIfCompleteLocked(ctx)
}

// Backspace clears the digit at index, or the one before it when index is already empty.
func (e *Entry) Backspace(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editableLocked() || index < 0 || index >= Length {
		return
	}
	if e.digits[index] == 0 && index > 0 {
		index--
	}
	e.digits[index] = 0
	e.focus = index
}

// Resend asks for a new code. The fields are cleared and the validity window restarts.
func (e *Entry) Resend(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateVerifying || e.state == StateVerified {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if e.resend != nil {
		if err := e.resend(ctx); err != nil {
			e.mu.Lock()
			e.message = gateway.UserMessage(err)
			e.lastErr = err
			e.mu.Unlock()
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.state = StateEntering
	e.message = ""
	e.lastErr = nil
	e.expiresAt = e.now().Add(Validity)
	return nil
}

// editableLocked reports whether input is accepted, moving an errored entry back to entering.
func (e *Entry) editableLocked() bool {
	switch e.state {
	case StateEntering:
		return true
	case StateError:
		e.state = StateEntering
		e.message = ""
		return true
	}
	return false
}

// submitIfCompleteLocked runs with e.mu held and releases it.
func (e *Entry) submitIfCompleteLocked(ctx context.Context) State {
	code, complete := e.codeLocked()
	if !complete {
		defer e.mu.Unlock()
		return e.state
	}
	e.state = StateVerifying
	e.mu.Unlock()

	err := e.verify(ctx, code)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.resetLocked()
		e.state = StateError
		e.message = gateway.MsgInvalidCode
		e.lastErr = err
		return e.state
	}
	e.state = StateVerified
	e.message = ""
	e.lastErr = nil
	return e.state
}

func (e *Entry) codeLocked() (string, bool) {
	var b strings.Builder
	for _, d := range e.digits {
		if d == 0 {
			return "", false
		}
		b.WriteRune(d)
	}
	return b.String(), true
}

func (e *Entry) resetLocked() {
	e.digits = [Length]rune{}
	e.focus = 0
}

// Digits returns the current field values, "" for empty fields.
func (e *Entry) Digits() [Length]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out [Length]string
	for i, d := range e.digits {
		if d != 0 {
			out[i] = string(d)
		}
	}
	return out
}

func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Entry) Focus() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focus
}

// Message is the text shown under the fields.
func (e *Entry) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// Err is the provider's own error from the last failed call.
func (e *Entry) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Entry) ExpiresAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expiresAt
}

// Remaining is the time left on the current code, never negative.
func (e *Entry) Remaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return max(e.expiresAt.Sub(e.now()), 0)
}

// isDigit reports whether r is an ASCII digit.
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
