// Package drive implements storage.Backend on Google Drive v3.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/gauth"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage"
)

var _ storage.Backend = (*Backend)(nil)

const folderMimeType = "application/vnd.google-apps.folder"

type Backend struct {
	srv *drivev3.Service
}

func New(ctx context.Context, creds gauth.Credentials) (*Backend, error) {
	opts, err := gauth.ClientOptions(creds, drivev3.DriveScope)
	if err != nil {
		return nil, err
	}
	srv, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &Backend{srv: srv}, nil
}

func (b *Backend) FindFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	resp, err := b.srv.Files.List().
		Q(folderQuery(parentID, name)).
		Spaces("drive").
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, err
	}
	if len(resp.Files) == 0 {
		return "", false, nil
	}
	return resp.Files[0].Id, true, nil
}

func (b *Backend) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	f, err := b.srv.Files.Create(&drivev3.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

func (b *Backend) CreateFile(ctx context.Context, parentID, name, mimeType string, body io.Reader) (string, error) {
	f, err := b.srv.Files.Create(&drivev3.File{
		Name:    name,
		Parents: []string{parentID},
	}).Media(body, googleapi.ContentType(mimeType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(err)
	}
	return f.Id, nil
}

// GrantPublicRead lets anyone with the link view the file.
func (b *Backend) GrantPublicRead(ctx context.Context, fileID string) error {
	_, err := b.srv.Permissions.Create(fileID, &drivev3.Permission{
		Type: "anyone",
		Role: "reader",
	}).SupportsAllDrives(true).Context(ctx).Do()
	return err
}

func (b *Backend) FileURL(fileID string) string {
	return "https://drive.google.com/file/d/" + fileID + "/view"
}

func folderQuery(parentID, name string) string {
	return fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escape(name), escape(parentID), folderMimeType)
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// classify maps a failed upload to storage.ErrUpload when Drive rejected the
// file itself, and to storage.ErrTransport otherwise.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
		case gerr.Code >= 400:
			return fmt.Errorf("%w: %w", storage.ErrUpload, err)
		}
	}
	return fmt.Errorf("%w: %w", storage.ErrTransport, err)
}
