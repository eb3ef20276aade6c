package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/postflow/internal/domain/upload"
)

// GridFSStore stores objects as GridFS files named by their path.
type GridFSStore struct {
	db      *mongo.Database
	name    string
	baseURL string
}

var _ upload.ObjectStore = (*GridFSStore)(nil)

// NewGridFSStore opens (or lazily creates) the named bucket in db.
func NewGridFSStore(db *mongo.Database, bucketName, baseURL string) (*GridFSStore, error) {
	s := &GridFSStore{db: db, name: bucketName, baseURL: strings.TrimRight(baseURL, "/")}
	if _, err := s.bucket(context.Background()); err != nil {
		return nil, fmt.Errorf("blob.gridfs.new: %w", err)
	}
	return s, nil
}

// bucket returns a handle carrying ctx's deadline. Bucket operations take no
// context and deadlines are per handle, so each call gets its own.
func (s *GridFSStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.name))
	if err != nil {
		return nil, err
	}
	if d, ok := ctx.Deadline(); ok {
		_ = b.SetReadDeadline(d)
		_ = b.SetWriteDeadline(d)
	}
	return b, nil
}

func (s *GridFSStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error) {
	const op = "blob.gridfs.put"

	b, err := s.bucket(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType, "size": size})
	if _, err := b.UploadFromStream(path, r, opts); err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return publicURL(s.baseURL, path), nil
}

type fileID struct {
	ID primitive.ObjectID `bson:"_id"`
}

func (s *GridFSStore) find(ctx context.Context, b *gridfs.Bucket, path string) ([]fileID, error) {
	cur, err := b.Find(bson.M{"filename": path})
	if err != nil {
		return nil, err
	}
	var ids []fileID
	if err := cur.All(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GridFSStore) Resolve(ctx context.Context, url string) error {
	const op = "blob.gridfs.resolve"

	path, err := pathOf(s.baseURL, url)
	if err != nil {
		return err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ids, err := s.find(ctx, b, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%s: %s: %w", op, url, upload.ErrObjectNotFound)
	}
	return nil
}

func (s *GridFSStore) Delete(ctx context.Context, url string) error {
	const op = "blob.gridfs.delete"

	path, err := pathOf(s.baseURL, url)
	if err != nil {
		return err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ids, err := s.find(ctx, b, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, id := range ids {
		if err := b.Delete(id.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("%s: %s: %w", op, path, err)
		}
	}
	return nil
}

// Open streams the newest revision of url.
func (s *GridFSStore) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	const op = "blob.gridfs.open"

	path, err := pathOf(s.baseURL, url)
	if err != nil {
		return nil, err
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stream, err := b.OpenDownloadStreamByName(path)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("%s: %s: %w", op, url, upload.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stream, nil
}
