package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/warp/nurse-pay/generic"
)

// DriveConfig configures a Google Drive folder target. Credentials are a
// service account key, inline or from a file; the folder must be shared
// with the service account.
type DriveConfig struct {
	FolderID        string
	CredentialsJSON string
	CredentialsFile string
	Endpoint        string       // optional API endpoint override
	HTTPClient      *http.Client // optional, replaces authentication
}

// DriveTarget stores backups as files in one Drive folder.
type DriveTarget struct {
	svc    *drive.Service
	folder string
}

// NewDriveTarget creates a Drive target.
func NewDriveTarget(ctx context.Context, cfg DriveConfig) (*DriveTarget, error) {
	if cfg.FolderID == "" {
		return nil, errors.New("drive folder id required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read drive credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	default:
		return nil, errors.New("missing drive credentials (credentials JSON or file)")
	}
	opts = append(opts, option.WithScopes(drive.DriveFileScope))
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DriveTarget{svc: svc, folder: cfg.FolderID}, nil
}

func (d *DriveTarget) Name() string { return "drive:" + d.folder }

func (d *DriveTarget) Put(ctx context.Context, key string, data []byte) error {
	file := &drive.File{Name: key, Parents: []string{d.folder}, MimeType: "application/json"}
	_, err := d.svc.Files.Create(file).Media(bytes.NewReader(data)).Fields("id").Context(ctx).Do()
	return err
}

func (d *DriveTarget) Get(ctx context.Context, key string) ([]byte, error) {
	id, err := d.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: %s", generic.ErrNoBackup, key)
	}
	resp, err := d.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (d *DriveTarget) List(ctx context.Context) ([]Object, error) {
	objs := []Object{}
	err := d.svc.Files.List().
		Q(folderQuery(d.folder, "name contains "+quoteDrive(keyPrefix))).
		Fields("nextPageToken, files(id, name, size, modifiedTime)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if !IsBackupKey(f.Name) {
					continue
				}
				mod, _ := time.Parse(time.RFC3339, f.ModifiedTime)
				objs = append(objs, Object{Key: f.Name, Size: f.Size, ModTime: mod.UTC()})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	sortObjects(objs)
	return objs, nil
}

func (d *DriveTarget) Delete(ctx context.Context, key string) error {
	id, err := d.lookup(ctx, key)
	if err != nil || id == "" {
		return err
	}
	return d.svc.Files.Delete(id).Context(ctx).Do()
}

// lookup returns the file id of a key, or "" when absent.
func (d *DriveTarget) lookup(ctx context.Context, key string) (string, error) {
	list, err := d.svc.Files.List().
		Q(folderQuery(d.folder, "name = "+quoteDrive(key))).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

// folderQuery restricts a Drive search to live files of a folder.
func folderQuery(folder, clause string) string {
	return quoteDrive(folder) + " in parents and " + clause + " and trashed = false"
}

// quoteDrive quotes a string literal for the Drive query language.
func quoteDrive(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + "'"
}
