package cloud

import (
	"context"
	"fmt"
	"log/slog"
)

// UploadReceiptImage stores a receipt JPEG under {deviceID}/{filename}
// and returns its public URL. On failure the caller keeps the local file
// path as the image reference.
func (s *Service) UploadReceiptImage(ctx context.Context, filename string, jpeg []byte) (string, error) {
	id, err := s.Initialize(ctx)
	if err != nil {
		return "", err
	}

	key := id.String() + "/" + filename
	if err := s.client.uploadObject(ctx, s.cfg.Bucket, key, jpeg, "image/jpeg"); err != nil {
		return "", fmt.Errorf("upload receipt image: %w", err)
	}

	url := s.client.PublicObjectURL(s.cfg.Bucket, key)
	slog.InfoContext(ctx, "Receipt image uploaded", "key", key)
	return url, nil
}

// DeleteReceiptImage removes an uploaded receipt by filename.
func (s *Service) DeleteReceiptImage(ctx context.Context, filename string) error {
	id, err := s.Initialize(ctx)
	if err != nil {
		return err
	}

	key := id.String() + "/" + filename
	if err := s.client.deleteObject(ctx, s.cfg.Bucket, key); err != nil {
		return fmt.Errorf("delete receipt image: %w", err)
	}
	return nil
}
