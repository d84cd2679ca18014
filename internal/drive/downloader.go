package drive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	larkdrive "github.com/larksuite/oapi-sdk-go/v3/service/drive/v1"
	"go.uber.org/zap"
)

// Fetch downloads a document's raw bytes by its drive token, retrying
// transient failures with exponential backoff.
func (c *Client) Fetch(ctx context.Context, documentID string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		data, err := c.download(ctx, documentID)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if isPermanentError(err) {
			c.logger.Info("Permanent error, not retrying",
				zap.String("document_id", documentID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}

		if attempt < c.maxRetries {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Info("Retrying download",
				zap.String("document_id", documentID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.logger.Error("Failed to download after retries",
		zap.String("document_id", documentID),
		zap.Int("max_attempts", c.maxRetries),
		zap.Error(lastErr))
	return nil, fmt.Errorf("download failed after %d attempts: %w", c.maxRetries, lastErr)
}

// download performs a single drive download call.
func (c *Client) download(ctx context.Context, documentID string) ([]byte, error) {
	req := larkdrive.NewDownloadFileReqBuilder().
		FileToken(documentID).
		Build()

	resp, err := c.client.Drive.File.Download(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}

	if !resp.Success() {
		return nil, fmt.Errorf("download failed with status %d: %s", resp.Code, resp.Msg)
	}

	data, err := io.ReadAll(resp.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download returned empty file")
	}

	return data, nil
}

// isPermanentError checks if an error is permanent (should not retry)
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	// Don't retry on not-found or auth failures
	return strings.Contains(errStr, "status 404") ||
		strings.Contains(errStr, "status 401") ||
		strings.Contains(errStr, "status 403")
}
