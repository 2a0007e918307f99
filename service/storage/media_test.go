package storage

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeDataURL(t *testing.T) {
	r := require.New(t)

	payload := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
	data, contentType, err := DecodeDataURL("data:image/jpeg;base64," + payload)
	r.NoError(err)
	r.Equal("image/jpeg", contentType)
	r.Equal("jpeg-bytes", string(data))
}

func TestDecodeDataURLRawBase64(t *testing.T) {
	r := require.New(t)

	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	data, contentType, err := DecodeDataURL(payload)
	r.NoError(err)
	r.Equal("image/png", contentType, "bare payload defaults to png")
	r.Equal("png-bytes", string(data))
}

func TestDecodeDataURLMalformed(t *testing.T) {
	r := require.New(t)

	_, _, err := DecodeDataURL("data:image/png;base64")
	r.Error(err, "no comma separator")

	_, _, err = DecodeDataURL("data:image/png,plain-payload")
	r.Error(err, "not base64 encoded")

	_, _, err = DecodeDataURL("data:image/png;base64,@@@")
	r.Error(err, "invalid base64 payload")
}
