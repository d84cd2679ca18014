package drive

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	larkdrive "github.com/larksuite/oapi-sdk-go/v3/service/drive/v1"
	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/extract"
)

// DiscoveryError indicates the watched folder could not be enumerated at
// all. It is catastrophic: the run aborts with zero documents processed.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("document discovery failed: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// DocumentInfo describes one candidate document in the watched folder.
type DocumentInfo struct {
	ID           string
	Name         string
	MediaType    string
	ModifiedTime time.Time
}

const listPageSize = 100

// ListDocuments enumerates supported documents in the watched folder whose
// modification time falls inside the lookback window. Unsupported file
// types are skipped, not failed.
func (c *Client) ListDocuments(ctx context.Context, since time.Time) ([]DocumentInfo, error) {
	var docs []DocumentInfo
	pageToken := ""

	for {
		builder := larkdrive.NewListFileReqBuilder().
			FolderToken(c.folderToken).
			PageSize(listPageSize).
			OrderBy("EditedTime").
			Direction("DESC")
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := c.client.Drive.File.List(ctx, builder.Build())
		if err != nil {
			c.logger.Error("Failed to list drive folder",
				zap.String("folder_token", c.folderToken),
				zap.Error(err))
			return nil, &DiscoveryError{Err: err}
		}

		if !resp.Success() {
			c.logger.Error("Drive list API returned failure",
				zap.Int("code", resp.Code),
				zap.String("msg", resp.Msg))
			return nil, &DiscoveryError{Err: fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)}
		}

		for _, f := range resp.Data.Files {
			info, ok := c.toDocumentInfo(f)
			if !ok {
				continue
			}
			if info.ModifiedTime.Before(since) {
				continue
			}
			docs = append(docs, info)
		}

		if resp.Data.HasMore == nil || !*resp.Data.HasMore ||
			resp.Data.NextPageToken == nil || *resp.Data.NextPageToken == "" {
			break
		}
		pageToken = *resp.Data.NextPageToken
	}

	c.logger.Info("Discovered candidate documents",
		zap.Int("count", len(docs)),
		zap.Time("since", since))

	return docs, nil
}

// toDocumentInfo converts an SDK file entry, filtering out folders and
// unsupported media types.
func (c *Client) toDocumentInfo(f *larkdrive.File) (DocumentInfo, bool) {
	if f == nil || f.Token == nil || f.Name == nil {
		return DocumentInfo{}, false
	}
	if f.Type != nil && *f.Type != "file" {
		return DocumentInfo{}, false
	}

	mediaType, ok := mediaTypeForName(*f.Name)
	if !ok {
		c.logger.Debug("Skipping unsupported file type", zap.String("name", *f.Name))
		return DocumentInfo{}, false
	}

	info := DocumentInfo{
		ID:        *f.Token,
		Name:      *f.Name,
		MediaType: mediaType,
	}
	if f.ModifiedTime != nil {
		if secs, err := strconv.ParseInt(*f.ModifiedTime, 10, 64); err == nil {
			info.ModifiedTime = time.Unix(secs, 0).UTC()
		}
	}
	return info, true
}

// mediaTypeForName classifies a file by extension.
func mediaTypeForName(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return extract.MediaTypePDF, true
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return extract.MediaTypeImage, true
	}
	return "", false
}
