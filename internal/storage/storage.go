// Package storage archives generated documents under
// <root>/<category>/<region>/<year>年/<event>/ in a folder-based backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/documents"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/regions"
)

var (
	// ErrTransport covers network, auth and folder listing/creation failures.
	ErrTransport = errors.New("storage transport error")
	// ErrUpload is returned when the backend rejects a file.
	ErrUpload = errors.New("storage upload rejected")
)

const XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DisplayNames are the names documents are archived under, by bundle key.
var DisplayNames = map[string]string{
	documents.KeyRoster:    "会員登録表.xlsx",
	documents.KeyEntryForm: "個人戦申込書.xlsx",
}

// Backend is a folder-based object store.
type Backend interface {
	// FindFolder looks up a direct child folder by exact name.
	FindFolder(ctx context.Context, parentID, name string) (id string, found bool, err error)
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	CreateFile(ctx context.Context, parentID, name, mimeType string, body io.Reader) (string, error)
	GrantPublicRead(ctx context.Context, fileID string) error
	FileURL(fileID string) string
}

// Recorder receives upload counters; Options.Recorder may be nil.
type Recorder interface {
	FolderCreated()
	FileUploaded(key string, ok bool)
}

type noopRecorder struct{}

func (noopRecorder) FolderCreated() {}
func (noopRecorder) FileUploaded(string, bool) {}

type Options struct {
	RootID         string
	CategoryFolder string
	CallTimeout    time.Duration
	Logger         *slog.Logger
	Recorder       Recorder
	Now            func() time.Time
}

type Uploader struct {
	backend  Backend
	rootID   string
	category string
	timeout  time.Duration
	logger   *slog.Logger
	rec      Recorder
	now      func() time.Time

	flights singleflight.Group
}

func NewUploader(b Backend, opts Options) *Uploader {
	u := &Uploader{
		backend:  b,
		rootID:   opts.RootID,
		category: opts.CategoryFolder,
		timeout:  opts.CallTimeout,
		logger:   opts.Logger,
		rec:      opts.Recorder,
		now:      opts.Now,
	}
	if u.category == "" {
		u.category = "登録申請書・大会申込書"
	}
	if u.timeout <= 0 {
		u.timeout = 30 * time.Second
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	if u.rec == nil {
		u.rec = noopRecorder{}
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u
}

// FolderPath returns the folder segments below the root for an event.
func (u *Uploader) FolderPath(regionID int, eventName string) ([]string, error) {
	name, err := regions.Name(regionID)
	if err != nil {
		return nil, err
	}
	return []string{
		u.category,
		name,
		strconv.Itoa(u.now().Year()) + "年",
		eventName,
	}, nil
}

// ResolveFolder walks segments below parentID, creating what is missing, and
// returns the id of the last folder. Each (parent, name) step is shared by
// every concurrent caller, so paths with a common prefix create it once.
func (u *Uploader) ResolveFolder(ctx context.Context, parentID string, segments []string) (string, error) {
	cur := parentID
	for _, name := range segments {
		id, err := u.ensureFolder(ctx, cur, name)
		if err != nil {
			return "", err
		}
		cur = id
	}
	return cur, nil
}

// ensureFolder finds or creates one folder. The shared flight runs detached
// from the caller's cancellation and is bounded by the per-call timeouts; a
// caller whose ctx ends stops waiting without failing the others.
func (u *Uploader) ensureFolder(ctx context.Context, parentID, name string) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := u.flights.DoChan(parentID+"\x00"+name, func() (any, error) {
		return u.findOrCreate(flightCtx, parentID, name)
	})
	select {
	case <-ctx.Done():
		return "", transport(fmt.Errorf("resolve folder %q: %w", name, ctx.Err()))
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func (u *Uploader) findOrCreate(ctx context.Context, parentID, name string) (string, error) {
	id, found, err := u.findFolder(ctx, parentID, name)
	if err != nil {
		return "", err
	}
	if found {
		return id, nil
	}
	id, err = u.createFolder(ctx, parentID, name)
	if err != nil {
		return "", err
	}
	u.rec.FolderCreated()
	u.logger.Info("folder created", "parent_id", parentID, "name", name, "folder_id", id)
	return id, nil
}

func (u *Uploader) findFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	id, found, err := u.backend.FindFolder(ctx, parentID, name)
	if err != nil {
		return "", false, transport(fmt.Errorf("find folder %q: %w", name, err))
	}
	return id, found, nil
}

func (u *Uploader) createFolder(ctx context.Context, parentID, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	id, err := u.backend.CreateFolder(ctx, parentID, name)
	if err != nil {
		return "", transport(fmt.Errorf("create folder %q: %w", name, err))
	}
	return id, nil
}

// Upload archives files (bundle key -> local path) for an event and returns
// public URLs by key. A failed file does not stop the others: the map holds
// every key that succeeded and the error joins the failures.
func (u *Uploader) Upload(ctx context.Context, regionID int, eventName string, files map[string]string) (map[string]string, error) {
	segments, err := u.FolderPath(regionID, eventName)
	if err != nil {
		return nil, err
	}
	folderID, err := u.ResolveFolder(ctx, u.rootID, segments)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	urls := map[string]string{}
	var errs []error
	for _, key := range keys {
		id, err := u.uploadFile(ctx, folderID, key, files[key])
		u.rec.FileUploaded(key, err == nil)
		if err != nil {
			u.logger.Error("upload failed", "key", key, "event", eventName, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		urls[key] = u.backend.FileURL(id)
	}
	return urls, errors.Join(errs...)
}

func (u *Uploader) uploadFile(ctx context.Context, folderID, key, path string) (string, error) {
	name, ok := DisplayNames[key]
	if !ok {
		name = filepath.Base(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	callCtx, cancel := context.WithTimeout(ctx, u.timeout)
	id, err := u.backend.CreateFile(callCtx, folderID, name, XLSXMimeType, f)
	cancel()
	if err != nil {
		if errors.Is(err, ErrTransport) || errors.Is(err, ErrUpload) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}

	permCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	if err := u.backend.GrantPublicRead(permCtx, id); err != nil {
		u.logger.Warn("grant public read failed", "file_id", id, "name", name, "err", err)
	}
	return id, nil
}

func transport(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
