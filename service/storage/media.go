package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatty/tools/ids"
)

// MediaStore is a GridFS-backed blob store for message and profile
// images. Upload returns a URL the frontend can render directly; the
// bytes are served back by the /api/media/:id route.
type MediaStore struct {
	bucket *gridfs.Bucket
}

func NewMediaStore(c *Client) (*MediaStore, error) {
	bucket, err := gridfs.NewBucket(c.DB())
	if err != nil {
		return nil, errors.Wrap(err, "gridfs bucket")
	}
	return &MediaStore{bucket: bucket}, nil
}

func (m *MediaStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty media payload")
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = m.bucket.SetWriteDeadline(dl)
	}

	opts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	id, err := m.bucket.UploadFromStream(ids.GenerateString(), bytes.NewReader(data), opts)
	if err != nil {
		return "", errors.Wrap(err, "gridfs upload")
	}
	return "/api/media/" + id.Hex(), nil
}

// Open returns a reader over the stored blob together with its content
// type, so callers can set response headers before streaming.
func (m *MediaStore) Open(ctx context.Context, idHex string) (io.ReadCloser, string, error) {
	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		return nil, "", errors.Wrap(err, "bad media id")
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = m.bucket.SetReadDeadline(dl)
	}

	contentType := "application/octet-stream"
	cursor, err := m.bucket.Find(bson.M{"_id": id})
	if err == nil {
		if cursor.Next(ctx) {
			var f struct {
				Metadata struct {
					ContentType string `bson:"contentType"`
				} `bson:"metadata"`
			}
			if cursor.Decode(&f) == nil && f.Metadata.ContentType != "" {
				contentType = f.Metadata.ContentType
			}
		}
		_ = cursor.Close(ctx)
	}

	stream, err := m.bucket.OpenDownloadStream(id)
	if err != nil {
		return nil, "", errors.Wrap(err, "gridfs download")
	}
	return stream, contentType, nil
}

// DecodeDataURL splits a "data:<type>;base64,<payload>" string the way
// the frontend posts images. Raw base64 without the prefix is accepted
// too and defaults to image/png.
func DecodeDataURL(s string) (data []byte, contentType string, err error) {
	contentType = "image/png"

	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", errors.New("malformed data url")
		}
		meta := s[len("data:"):comma]
		s = s[comma+1:]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", errors.New("data url is not base64 encoded")
		}
		if ct := strings.TrimSuffix(meta, ";base64"); ct != "" {
			contentType = ct
		}
	}

	data, err = base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", errors.Wrap(err, "decode base64 payload")
	}
	return data, contentType, nil
}
