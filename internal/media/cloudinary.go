package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryConfig 媒体服务凭据，进程启动时显式注入。
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

func (c CloudinaryConfig) validate() error {
	if c.CloudName == "" || c.APIKey == "" || c.APISecret == "" {
		return errors.New("media: cloudinary cloud name, api key and api secret are required")
	}
	return nil
}

// Cloudinary 基于 Cloudinary 的 Store 实现。
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(cfg CloudinaryConfig) (*Cloudinary, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("media: init cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, folder: cfg.Folder}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("media: open %s: %w", f.Field, err)
	}
	defer rc.Close()

	res, err := c.cld.Upload.Upload(ctx, rc, uploader.UploadParams{Folder: c.folder})
	if err != nil {
		return "", fmt.Errorf("media: upload %s: %w", f.Field, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("media: upload %s: %s", f.Field, res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", fmt.Errorf("media: upload %s: empty url", f.Field)
	}
	return res.SecureURL, nil
}

func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("media: destroy %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("media: destroy %s: %s", publicID, res.Error.Message)
	}
	// "not found" 也视为已删除
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("media: destroy %s: result %q", publicID, res.Result)
	}
	return nil
}
