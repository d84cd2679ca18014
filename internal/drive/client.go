package drive

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Config holds cloud drive client configuration
type Config struct {
	AppID       string
	AppSecret   string
	FolderToken string
	MaxRetries  int
}

// Client wraps the drive SDK client for the watched voucher folder.
type Client struct {
	client      *lark.Client
	folderToken string
	maxRetries  int
	logger      *zap.Logger
}

// NewClient creates a new drive client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		client:      client,
		folderToken: cfg.FolderToken,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}
