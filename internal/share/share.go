// Package share defines the share-sheet capability.
package share

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/starford/photolog/internal/apperr"
)

// Payload is what gets handed to the share target.
type Payload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// Sharer presents a payload to the user for sharing.
// A user cancellation is reported by wrapping apperr.ErrShareCancelled.
type Sharer interface {
	Share(ctx context.Context, p Payload) error
}

// SharerFunc adapts a function to Sharer.
type SharerFunc func(ctx context.Context, p Payload) error

func (f SharerFunc) Share(ctx context.Context, p Payload) error { return f(ctx, p) }

// cancelExitCode is the conventional status of a process interrupted by the user.
const cancelExitCode = 130

// Command shares by running an external program (a desktop share dialog,
// a mail client, a clipboard helper). The payload is appended to Args as
// title, text, url and also exported as PHOTOLOG_SHARE_TITLE,
// PHOTOLOG_SHARE_TEXT and PHOTOLOG_SHARE_URL.
type Command struct {
	Name string
	Args []string
}

// Share runs the command and waits for it. Exit status 130 or a done
// context means the user dismissed the share.
func (c Command) Share(ctx context.Context, p Payload) error {
	if c.Name == "" {
		return fmt.Errorf("share: no command configured")
	}
	args := append(append([]string{}, c.Args...), p.Title, p.Text, p.URL)
	cmd := exec.CommandContext(ctx, c.Name, args...)
	cmd.Env = append(os.Environ(),
		"PHOTOLOG_SHARE_TITLE="+p.Title,
		"PHOTOLOG_SHARE_TEXT="+p.Text,
		"PHOTOLOG_SHARE_URL="+p.URL,
	)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", apperr.ErrShareCancelled, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == cancelExitCode {
		return apperr.ErrShareCancelled
	}
	return fmt.Errorf("share: %s: %w: %s", c.Name, err, out)
}
