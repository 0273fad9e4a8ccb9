// Package documents renders the paperwork filed with a region's governing
// body from that region's spreadsheet templates.
package documents

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/regions"
)

var ErrTemplateMissing = errors.New("template not found")

// Bundle keys.
const (
	KeyRoster    = "roster"
	KeyEntryForm = "entry_form"
)

// FileHandle is a generated document on local disk.
type FileHandle struct {
	Key  string
	Path string
}

// Env tells a strategy where templates live and where to write output.
type Env struct {
	TemplateRoot string
	OutputDir    string
}

// Strategy produces the two documents for one region. A nil handle with a nil
// error means the document is not needed for this input.
type Strategy interface {
	RegionID() int
	GenerateRoster(eventName string, entries []models.EnrichedEntry, ts time.Time) (*FileHandle, error)
	GenerateEntryForm(event models.Event, entries []models.EnrichedEntry, ts time.Time) (*FileHandle, error)
}

type Bundle struct {
	Roster    *FileHandle
	EntryForm *FileHandle
}

// Files returns the produced documents keyed by KeyRoster / KeyEntryForm.
func (b Bundle) Files() map[string]string {
	out := map[string]string{}
	if b.Roster != nil {
		out[KeyRoster] = b.Roster.Path
	}
	if b.EntryForm != nil {
		out[KeyEntryForm] = b.EntryForm.Path
	}
	return out
}

func (b Bundle) Empty() bool { return b.Roster == nil && b.EntryForm == nil }

// Generate runs both documents of s for one event.
func Generate(s Strategy, event models.Event, entries []models.EnrichedEntry, ts time.Time) (Bundle, error) {
	var b Bundle
	roster, err := s.GenerateRoster(event.Name, entries, ts)
	if err != nil {
		return Bundle{}, fmt.Errorf("roster: %w", err)
	}
	b.Roster = roster

	form, err := s.GenerateEntryForm(event, entries, ts)
	if err != nil {
		return Bundle{}, fmt.Errorf("entry form: %w", err)
	}
	b.EntryForm = form
	return b, nil
}

// templateDir returns <root>/<id>_<name>.
func templateDir(root string, regionID int) (string, error) {
	dir, err := regions.Dir(regionID)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, dir), nil
}

// copyTemplate copies a template into the output directory so the original
// asset is never edited.
func copyTemplate(env Env, regionID int, templateName, outputName string) (string, error) {
	dir, err := templateDir(env.TemplateRoot, regionID)
	if err != nil {
		return "", err
	}
	src := filepath.Join(dir, templateName)
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", src, ErrTemplateMissing)
		}
		return "", fmt.Errorf("open template: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(env.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	dst := filepath.Join(env.OutputDir, outputName)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copy template: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close output: %w", err)
	}
	return dst, nil
}
