// Package assets stores uploaded image blobs in Redis and serves them back
// over HTTP. The message and profile paths only ever see the resulting URL,
// never the raw bytes.
package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidDataURI = errors.New("assets: invalid data URI")

const keyPrefix = "asset:"

type Store struct {
	rdb     *redis.Client
	baseURL string
}

func New(rdb *redis.Client, baseURL string) *Store {
	return &Store{rdb: rdb, baseURL: strings.TrimRight(baseURL, "/")}
}

// UploadDataURI decodes a base64 data URI (the format clients post images
// in), stores the blob, and returns the URL it will be served under.
func (s *Store) UploadDataURI(ctx context.Context, uri string) (string, error) {
	contentType, data, err := parseDataURI(uri)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	if err := s.rdb.HSet(ctx, keyPrefix+id, "type", contentType, "data", data).Err(); err != nil {
		return "", err
	}
	return s.baseURL + "/assets/" + id, nil
}

// Serve is the GET /assets/{id} handler.
func (s *Store) Serve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	vals, err := s.rdb.HGetAll(r.Context(), keyPrefix+id).Result()
	if err != nil {
		http.Error(w, "asset lookup failed", http.StatusInternalServerError)
		return
	}
	if len(vals) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", vals["type"])
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write([]byte(vals["data"]))
}

// parseDataURI splits "data:<mediatype>;base64,<payload>" into its content
// type and decoded payload.
func parseDataURI(uri string) (contentType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	contentType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	if contentType == "" {
		contentType = "text/plain"
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, ErrInvalidDataURI
	}
	return contentType, data, nil
}
