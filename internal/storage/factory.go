package storage

import (
	"context"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"galarender/internal/adapters/storage/gdrive"
	"galarender/internal/adapters/storage/localfs"
	"galarender/internal/config"
	"galarender/internal/pkg/errors"
	"galarender/internal/ports"
)

// Provider is the storage contract the publisher uploads through.
type Provider = ports.StorageProvider

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "localfs":
		if strings.TrimSpace(cfg.LocalRoot) == "" {
			return nil, errors.ValidationField("storage.local_root", "local_root is required for localfs")
		}
		return localfs.New(cfg.LocalRoot), nil

	case "gdrive":
		return newGDriveProvider(ctx, cfg)

	case "":
		return nil, errors.ValidationField("storage.provider", "no storage provider configured")

	default:
		return nil, errors.Validationf("unknown storage provider: %s", cfg.Provider).
			WithField("field", "storage.provider")
	}
}

func newGDriveProvider(ctx context.Context, cfg config.StorageConfig) (Provider, error) {
	for field, v := range map[string]string{
		"GDRIVE_CLIENT_ID":     cfg.GDriveClientID,
		"GDRIVE_CLIENT_SECRET": cfg.GDriveClientSecret,
		"GDRIVE_REFRESH_TOKEN": cfg.GDriveRefreshToken,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, errors.ValidationField(field, "missing env: "+field)
		}
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GDriveClientID,
		ClientSecret: cfg.GDriveClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.GDriveRefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "storage.gdrive", "cannot create drive service")
	}

	return gdrive.NewClient(srv, cfg.GDriveFolderID), nil
}
