// Package backup writes encrypted snapshots of the lineage database to
// S3-compatible storage and restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds S3-compatible storage settings and the archive passphrase.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	Passphrase string
}

// Enabled reports whether enough is configured to reach the bucket.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Object describes one stored archive.
type Object struct {
	Key      string    `json:"key"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Manager creates, lists, prunes and restores database archives.
type Manager struct {
	cfg    Config
	client s3Client
	now    func() time.Time
	logger *slog.Logger
}

// NewManager returns a manager talking to the configured bucket.
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	if !cfg.Enabled() {
		return nil, errors.New("backup not configured: bucket and credentials required")
	}
	if cfg.Passphrase == "" {
		return nil, errors.New("backup not configured: passphrase required")
	}
	return newManager(cfg, newS3Client(cfg), logger), nil
}

func newManager(cfg Config, client s3Client, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, client: client, now: time.Now, logger: logger}
}

func newS3Client(cfg Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) key(name string) string {
	if m.cfg.Prefix == "" {
		return name
	}
	return strings.TrimSuffix(m.cfg.Prefix, "/") + "/" + name
}

// Run snapshots db, encrypts it and uploads the archive.
func (m *Manager) Run(ctx context.Context, db *sql.DB) (*Object, error) {
	dir, err := os.MkdirTemp("", "lineage-backup-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// VACUUM INTO gives a consistent copy without stopping writers.
	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	plain, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := Seal(plain, m.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	now := m.now().UTC()
	obj := &Object{
		Key:      m.key(fmt.Sprintf("lineage-%s.db.enc", now.Format("2006-01-02T150405Z"))),
		Size:     int64(len(sealed)),
		Modified: now,
	}
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(obj.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	m.logger.Info("backup uploaded", "key", obj.Key, "bytes", obj.Size)
	return obj, nil
}

// List returns the stored archives, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(m.cfg.Bucket)}
	if m.cfg.Prefix != "" {
		input.Prefix = aws.String(strings.TrimSuffix(m.cfg.Prefix, "/") + "/")
	}

	var objects []Object
	p := s3.NewListObjectsV2Paginator(m.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if !strings.HasSuffix(key, ".db.enc") {
				continue
			}
			objects = append(objects, Object{
				Key:      key,
				Size:     aws.ToInt64(o.Size),
				Modified: aws.ToTime(o.LastModified),
			})
		}
	}

	slices.SortFunc(objects, func(a, b Object) int {
		return b.Modified.Compare(a.Modified)
	})
	return objects, nil
}

// Prune deletes archives older than retention, always keeping the newest
// one. It returns the deleted keys.
func (m *Manager) Prune(ctx context.Context, retention time.Duration) ([]string, error) {
	objects, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := m.now().Add(-retention)
	var deleted []string
	for i, o := range objects {
		if i == 0 || !o.Modified.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Error("delete backup", "key", o.Key, "error", err)
			continue
		}
		deleted = append(deleted, o.Key)
	}
	return deleted, nil
}

// Restore downloads key, decrypts it, checks SQLite integrity and writes it
// to dbPath. The server must not be running against dbPath.
func (m *Manager) Restore(ctx context.Context, key, dbPath string) error {
	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	plain, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}

	tmp := dbPath + ".restore"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(tmp); err != nil {
		return err
	}

	if err := os.Rename(tmp, dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	m.logger.Info("backup restored", "key", key, "db", dbPath)
	return nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
