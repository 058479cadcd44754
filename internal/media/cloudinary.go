package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"robotics-catalog/internal/model"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Fragments of Cloudinary error messages that mean the credentials were rejected.
var cloudinaryAuthMarkers = []string{
	"api key",
	"api_key",
	"api secret",
	"signature",
	"cloud_name",
	"cloud name",
	"unauthorized",
}

type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(cloudName, apiKey, apiSecret, folder string) (*Cloudinary, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are not configured")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, localPath string) (model.Image, error) {
	resp, err := c.cld.Upload.Upload(ctx, localPath, uploader.UploadParams{
		Folder:       c.folder,
		ResourceType: "auto",
	})
	if err != nil {
		return model.Image{}, cloudinaryError("upload", err.Error(), err)
	}
	if resp == nil {
		return model.Image{}, &model.UploadError{Op: "upload", Err: errors.New("empty response")}
	}
	if resp.Error.Message != "" {
		return model.Image{}, cloudinaryError("upload", resp.Error.Message, nil)
	}
	if resp.SecureURL == "" || resp.PublicID == "" {
		return model.Image{}, &model.UploadError{Op: "upload", Err: errors.New("invalid response: missing secure_url or public_id")}
	}

	return model.Image{URL: resp.SecureURL, StorageHandle: resp.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, storageHandle string) error {
	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: storageHandle})
	if err != nil {
		return cloudinaryError("delete", err.Error(), err)
	}
	if resp == nil {
		return &model.UploadError{Op: "delete", Err: errors.New("empty response")}
	}
	if resp.Error.Message != "" {
		return cloudinaryError("delete", resp.Error.Message, nil)
	}
	if resp.Result != "ok" {
		return &model.UploadError{Op: "delete", Err: fmt.Errorf("destroy %s: %s", storageHandle, resp.Result)}
	}
	return nil
}

func cloudinaryError(op, message string, cause error) *model.UploadError {
	if cause == nil {
		cause = errors.New(message)
	}
	return &model.UploadError{Op: op, Auth: isCloudinaryAuthFailure(message), Err: cause}
}

func isCloudinaryAuthFailure(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range cloudinaryAuthMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
