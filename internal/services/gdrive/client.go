package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"lecturenote/internal/services"
)

const (
	folderMIME   = "application/vnd.google-apps.folder"
	markdownMIME = "text/markdown"
)

// files is the slice of the Drive API the exporter uses.
type files interface {
	FindFolder(ctx context.Context, name string) (string, bool, error)
	CreateFolder(ctx context.Context, name string) (string, error)
	Upload(ctx context.Context, name, mimeType, parentID string, body io.Reader) (string, error)
}

// Exporter uploads notes into one Drive folder.
type Exporter struct {
	api        files
	folderName string

	mu       sync.Mutex
	folderID string
}

// New builds an exporter from the credentials and cached token files.
func New(ctx context.Context, credentialsFile, tokenFile, folderName string) (*Exporter, error) {
	cfg, err := LoadOAuthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	token, err := LoadToken(tokenFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "drive", "load token", "no cached token; run `lecturenote drive auth`", nil)
		}
		return nil, services.Wrap(services.ErrConfiguration, "drive", "load token", "read token file", err)
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(cfg.Client(context.Background(), token)))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "drive", "new service", "create Drive client", err)
	}
	return newExporter(driveFiles{svc: svc}, folderName), nil
}

func newExporter(api files, folderName string) *Exporter {
	folderName = strings.TrimSpace(folderName)
	if folderName == "" {
		folderName = "LectureNote"
	}
	return &Exporter{api: api, folderName: folderName}
}

// Export uploads markdown as name inside the export folder and returns the
// file's view link.
func (e *Exporter) Export(ctx context.Context, name string, markdown []byte) (string, error) {
	folderID, err := e.ensureFolder(ctx)
	if err != nil {
		return "", err
	}
	id, err := e.api.Upload(ctx, name, markdownMIME, folderID, bytes.NewReader(markdown))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "drive", "upload", name, err)
	}
	return ViewLink(id), nil
}

func (e *Exporter) ensureFolder(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.folderID != "" {
		return e.folderID, nil
	}
	id, found, err := e.api.FindFolder(ctx, e.folderName)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "drive", "find folder", e.folderName, err)
	}
	if !found {
		id, err = e.api.CreateFolder(ctx, e.folderName)
		if err != nil {
			return "", services.Wrap(services.ErrExternalTool, "drive", "create folder", e.folderName, err)
		}
	}
	e.folderID = id
	return id, nil
}

// ViewLink returns the browser URL of a Drive file.
func ViewLink(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", fileID)
}

// folderQuery builds the Drive search expression for a top-level folder name.
func folderQuery(name string) string {
	escaped := strings.ReplaceAll(name, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escaped, folderMIME)
}

type driveFiles struct {
	svc *drive.Service
}

func (d driveFiles) FindFolder(ctx context.Context, name string) (string, bool, error) {
	list, err := d.svc.Files.List().Q(folderQuery(name)).Spaces("drive").Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", false, err
	}
	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

func (d driveFiles) CreateFolder(ctx context.Context, name string) (string, error) {
	folder, err := d.svc.Files.Create(&drive.File{Name: name, MimeType: folderMIME}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return folder.Id, nil
}

func (d driveFiles) Upload(ctx context.Context, name, mimeType, parentID string, body io.Reader) (string, error) {
	file := &drive.File{Name: name, MimeType: mimeType, Parents: []string{parentID}}
	created, err := d.svc.Files.Create(file).Media(body).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}
