// Package editor obtains draft text for a journal entry from the user.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrAborted signals that the user finished without producing a draft.
var ErrAborted = errors.New("editing aborted")

// Editor blocks until the user has finished writing and returns the text.
type Editor interface {
	Edit(ctx context.Context, initial string) (string, error)
}

// Template is placed in the scratch file handed to an external editor.
const Template = `
# Write your journal entry above this line.
# Lines starting with '#' are ignored; an empty entry is not saved.
`

// StripComments drops every line whose first non-blank character is '#'.
func StripComments(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// ResolveCommand picks the editor command: the configured one, then $VISUAL,
// then $EDITOR, then vi.
func ResolveCommand(configured string) string {
	for _, c := range []string{configured, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return "vi"
}

// External runs an editor program on a scratch file.
type External struct {
	// Command is the editor invocation, e.g. "vim" or "code --wait". The
	// scratch file path is appended as the last argument.
	Command string
	// TempDir holds the scratch file; empty means os.TempDir().
	TempDir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Edit writes initial to a scratch file, waits for the editor to exit and
// returns the saved text with comment lines removed. A scratch file left
// unchanged yields ErrAborted; a failing editor yields an error. The scratch
// file is always removed.
func (e *External) Edit(ctx context.Context, initial string) (string, error) {
	parts := strings.Fields(e.Command)
	if len(parts) == 0 {
		return "", errors.New("no editor command configured")
	}

	f, err := os.CreateTemp(e.TempDir, "tj-*.md")
	if err != nil {
		return "", fmt.Errorf("creating scratch file: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.WriteString(initial); err != nil {
		f.Close()
		return "", fmt.Errorf("writing scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing scratch file: %w", err)
	}

	cmd := exec.CommandContext(ctx, parts[0], append(parts[1:], name)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if e.Stdin != nil {
		cmd.Stdin = e.Stdin
	}
	if e.Stdout != nil {
		cmd.Stdout = e.Stdout
	}
	if e.Stderr != nil {
		cmd.Stderr = e.Stderr
	}
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %q failed: %w", parts[0], err)
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("reading scratch file: %w", err)
	}
	if string(data) == initial {
		return "", ErrAborted
	}
	return StripComments(string(data)), nil
}

// Prompt asks for the entry in an inline multi-line text field, for
// terminals without a usable editor program.
type Prompt struct {
	Title      string
	Accessible bool
}

// Edit runs the form, prefilled with initial minus its comment lines.
// Cancelling it with ctrl+c or esc yields ErrAborted.
func (p Prompt) Edit(ctx context.Context, initial string) (string, error) {
	title := p.Title
	if title == "" {
		title = "New journal entry"
	}
	text := strings.TrimSpace(StripComments(initial))
	form := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title(title).
			Description("ctrl+j inserts a newline, enter saves, esc cancels").
			Lines(10).
			Value(&text),
	)).WithAccessible(p.Accessible)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return text, nil
}

// Static returns fixed text, e.g. a message passed on the command line.
type Static string

func (s Static) Edit(context.Context, string) (string, error) {
	return string(s), nil
}
