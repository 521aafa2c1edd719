// Package storage archives session audio to Google Cloud Storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// RecordingStore uploads the raw candidate audio captured during a voice
// session. Uploads are best-effort and happen after the session ends; a
// failed upload never fails the interview.
type RecordingStore struct {
	client *gcs.Client
	bucket string
}

func NewRecordingStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*RecordingStore, error) {
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &RecordingStore{client: c, bucket: bucket}, nil
}

func (s *RecordingStore) Close() error { return s.client.Close() }

// Save writes one session recording as recordings/{session_id}.pcm and
// returns its public URL.
func (s *RecordingStore) Save(ctx context.Context, sessionID string, pcm []byte) (string, error) {
	objectName := "recordings/" + sessionID + ".pcm"
	obj := s.client.Bucket(s.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = "audio/L16; rate=16000"

	if _, err := io.Copy(w, bytes.NewReader(pcm)); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectName), nil
}
