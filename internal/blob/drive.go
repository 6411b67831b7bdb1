package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Drive stores blobs as files in one Google Drive folder. Blobs are served
// back through the service under {baseURL}/files/{key}, so Drive sharing
// settings do not matter.
type Drive struct {
	service  *drive.Service
	folderID string
	baseURL  string
	fileIDs  map[string]string
	mu       sync.Mutex
}

// NewDrive builds the store from client options, usually a service account
// scoped to drive.DriveFileScope.
func NewDrive(ctx context.Context, folderID, baseURL string, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Drive{
		service:  svc,
		folderID: folderID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		fileIDs:  make(map[string]string),
	}, nil
}

func (d *Drive) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	fileID, err := d.lookupLocked(ctx, key)
	if err != nil {
		return "", err
	}

	if fileID != "" {
		_, err = d.service.Files.Update(fileID, &drive.File{}).Media(bytes.NewReader(data)).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("drive update: %w", err)
		}
		return d.baseURL + "/files/" + key, nil
	}

	f, err := d.service.Files.Create(&drive.File{
		Name:     key,
		MimeType: contentType,
		Parents:  []string{d.folderID},
	}).Media(bytes.NewReader(data)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive create: %w", err)
	}

	d.fileIDs[key] = f.Id
	return d.baseURL + "/files/" + key, nil
}

func (d *Drive) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	fileID, err := d.lookupLocked(ctx, key)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if fileID == "" {
		return nil, ErrNotFound
	}

	resp, err := d.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

func (d *Drive) Exists(ctx context.Context, key string) bool {
	key, err := CleanKey(key)
	if err != nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fileID, err := d.lookupLocked(ctx, key)
	return err == nil && fileID != ""
}

func (d *Drive) Type() string { return "gdrive" }

// lookupLocked resolves a key to a Drive file id, falling back to a folder
// search for files created by an earlier process.
func (d *Drive) lookupLocked(ctx context.Context, key string) (string, error) {
	if id, ok := d.fileIDs[key]; ok {
		return id, nil
	}

	q := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		strings.ReplaceAll(key, "'", "\\'"), d.folderID)
	list, err := d.service.Files.List().Q(q).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive list: %w", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	d.fileIDs[key] = list.Files[0].Id
	return list.Files[0].Id, nil
}
