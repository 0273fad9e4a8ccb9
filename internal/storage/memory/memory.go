// Package memory is an in-process storage.Backend for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage"
)

var _ storage.Backend = (*Backend)(nil)

type node struct {
	id       string
	parentID string
	name     string
	folder   bool
	mimeType string
	data     []byte
	public   bool
}

type Backend struct {
	mu    sync.Mutex
	seq   int
	nodes map[string]*node

	findCalls   int
	createCalls int

	// Failure injection. A non-nil func is consulted on every call.
	FailFind       func(parentID, name string) error
	FailCreateFile func(name string) error
	FailPermission func(fileID string) error

	// FindDelay stalls FindFolder before it looks, outside the lock.
	FindDelay time.Duration
}

func New() *Backend {
	return &Backend{nodes: map[string]*node{}}
}

func (b *Backend) FindFolder(_ context.Context, parentID, name string) (string, bool, error) {
	if b.FindDelay > 0 {
		time.Sleep(b.FindDelay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.findCalls++
	if b.FailFind != nil {
		if err := b.FailFind(parentID, name); err != nil {
			return "", false, err
		}
	}
	for _, n := range b.nodes {
		if n.folder && n.parentID == parentID && n.name == name {
			return n.id, true, nil
		}
	}
	return "", false, nil
}

func (b *Backend) CreateFolder(_ context.Context, parentID, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createCalls++
	return b.add(&node{parentID: parentID, name: name, folder: true}), nil
}

func (b *Backend) CreateFile(_ context.Context, parentID, name, mimeType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailCreateFile != nil {
		if err := b.FailCreateFile(name); err != nil {
			return "", err
		}
	}
	return b.add(&node{parentID: parentID, name: name, mimeType: mimeType, data: data}), nil
}

func (b *Backend) GrantPublicRead(_ context.Context, fileID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailPermission != nil {
		if err := b.FailPermission(fileID); err != nil {
			return err
		}
	}
	n, ok := b.nodes[fileID]
	if !ok {
		return fmt.Errorf("file %s not found", fileID)
	}
	n.public = true
	return nil
}

func (b *Backend) FileURL(fileID string) string {
	return "memory://files/" + fileID
}

func (b *Backend) add(n *node) string {
	b.seq++
	n.id = fmt.Sprintf("m%d", b.seq)
	b.nodes[n.id] = n
	return n.id
}

// FolderCreations returns how many folders have been created.
func (b *Backend) FolderCreations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls
}

// File describes a stored file.
type File struct {
	ID       string
	ParentID string
	Name     string
	MimeType string
	Size     int
	Public   bool
}

// Files returns every stored file under parentID.
func (b *Backend) Files(parentID string) []File {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []File
	for _, n := range b.nodes {
		if n.folder || n.parentID != parentID {
			continue
		}
		out = append(out, File{ID: n.id, ParentID: n.parentID, Name: n.name, MimeType: n.mimeType, Size: len(n.data), Public: n.public})
	}
	return out
}

// Lookup resolves a folder path below parentID without creating anything.
func (b *Backend) Lookup(parentID string, segments ...string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := parentID
	for _, name := range segments {
		found := ""
		for _, n := range b.nodes {
			if n.folder && n.parentID == cur && n.name == name {
				found = n.id
				break
			}
		}
		if found == "" {
			return "", false
		}
		cur = found
	}
	return cur, true
}

// FolderLookups returns how many FindFolder calls were made.
func (b *Backend) FolderLookups() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.findCalls
}

// Content returns the bytes stored for a file.
func (b *Backend) Content(fileID string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.nodes[fileID]
	if !ok || n.folder {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}
