package storage

import (
	"context"
	"io"
	"time"
)

// Storage is the object store behind the file manager. Keys use "/" as the
// folder separator.
type Storage interface {
	// List returns the direct children of prefix: folders first, then files.
	List(ctx context.Context, prefix string) ([]Object, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Head(ctx context.Context, key string) (*Object, error)
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key under prefix and returns how many.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// URL presigns a GET. A non-empty downloadName forces an attachment.
	URL(ctx context.Context, key string, expiry time.Duration, downloadName string) (string, error)
}

// Object is a file or a folder marker.
type Object struct {
	ModifiedAt  time.Time `json:"modified_at,omitzero"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	Folder      bool      `json:"folder"`
}

// Config holds S3-compatible storage settings.
type Config struct {
	Bucket    string `yaml:"bucket" env:"STORAGE_BUCKET"`
	AccessKey string `yaml:"access_key" env:"STORAGE_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"STORAGE_SECRET_KEY"`

	// Endpoint is set for MinIO and other S3-compatible services.
	Endpoint  string `yaml:"endpoint" env:"STORAGE_ENDPOINT"`
	Region    string `yaml:"region" env:"STORAGE_REGION" envDefault:"us-east-1"`
	PathStyle bool   `yaml:"path_style" env:"STORAGE_PATH_STYLE"`

	// MaxUploadSize bounds a single upload in bytes.
	MaxUploadSize int64         `yaml:"max_upload_size" env:"STORAGE_MAX_UPLOAD_SIZE" envDefault:"52428800"`
	URLExpiry     time.Duration `yaml:"url_expiry" env:"STORAGE_URL_EXPIRY" envDefault:"15m"`
}

const (
	DefaultRegion        = "us-east-1"
	DefaultMaxUploadSize = 50 << 20
	DefaultURLExpiry     = 15 * time.Minute
)

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = DefaultMaxUploadSize
	}
	if c.URLExpiry <= 0 {
		c.URLExpiry = DefaultURLExpiry
	}
}

func (c Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}
