package share

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/photolog/internal/apperr"
)

func TestCommand_PassesPayload(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shared.txt")
	c := Command{Name: "sh", Args: []string{"-c", `printf '%s|%s|%s|%s' "$1" "$2" "$3" "$PHOTOLOG_SHARE_URL" > "` + out + `"`, "share"}}

	err := c.Share(context.Background(), Payload{Title: "Beach", Text: "Check out this memory!", URL: "file:///tmp/a.jpeg"})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "Beach|Check out this memory!|file:///tmp/a.jpeg|file:///tmp/a.jpeg"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCommand_ExitCodeCancels(t *testing.T) {
	c := Command{Name: "sh", Args: []string{"-c", "exit 130", "share"}}
	err := c.Share(context.Background(), Payload{Title: "x"})
	if !errors.Is(err, apperr.ErrShareCancelled) {
		t.Errorf("err = %v, want share cancelled", err)
	}
}

func TestCommand_FailureIsNotCancellation(t *testing.T) {
	c := Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 1", "share"}}
	err := c.Share(context.Background(), Payload{Title: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, apperr.ErrShareCancelled) {
		t.Error("exit 1 must not count as cancellation")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry output: %v", err)
	}
}

func TestCommand_Unconfigured(t *testing.T) {
	if err := (Command{}).Share(context.Background(), Payload{}); err == nil {
		t.Error("expected error for empty command")
	}
}
