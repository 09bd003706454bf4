package qbittorrent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"

	"github.com/s0up4200/ptpapi/config"
)

// api is the part of go-qbittorrent the client uses.
type api interface {
	LoginCtx(ctx context.Context) error
	GetTorrentsCtx(ctx context.Context, o qbittorrent.TorrentFilterOptions) ([]qbittorrent.Torrent, error)
	AddTorrentFromMemoryCtx(ctx context.Context, buf []byte, options map[string]string) error
}

// Client wraps the qBittorrent API client
type Client struct {
	client   api
	logger   zerolog.Logger
	category string
	savePath string
	paused   bool
	opts     clientOptions
}

// NewClient creates a new qBittorrent client and logs in.
func NewClient(ctx context.Context, cfg config.QBittorrentConfig, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: no url configured", ErrConnectionFailed)
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	client := qbittorrent.NewClient(qbittorrent.Config{
		Host:          cfg.URL,
		Username:      cfg.Username,
		Password:      cfg.Password,
		TLSSkipVerify: options.insecure,
		Timeout:       int(options.timeout.Seconds()),
	})

	return newClient(ctx, client, cfg, logger, options)
}

func newClient(ctx context.Context, client api, cfg config.QBittorrentConfig, logger zerolog.Logger, options clientOptions) (*Client, error) {
	if err := client.LoginCtx(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	logger.Debug().Str("host", cfg.URL).Msg("Connected to qBittorrent")

	return &Client{
		client:   client,
		logger:   logger,
		category: cfg.Category,
		savePath: cfg.SavePath,
		paused:   cfg.Paused,
		opts:     options,
	}, nil
}

// AddTorrent hands a .torrent file to qBittorrent using the configured
// category, save path and paused state. name is only used for logging.
func (c *Client) AddTorrent(ctx context.Context, data []byte, name string) error {
	if len(data) == 0 {
		return ErrEmptyTorrent
	}

	options := map[string]string{}
	if c.category != "" {
		options["category"] = c.category
	}
	if c.savePath != "" {
		options["savepath"] = c.savePath
		options["autoTMM"] = "false"
	}
	if c.paused {
		options["paused"] = "true"
		options["stopped"] = "true"
	}

	if err := c.client.AddTorrentFromMemoryCtx(ctx, data, options); err != nil {
		return fmt.Errorf("failed to add torrent %s: %w", name, err)
	}

	c.logger.Info().
		Str("torrent", name).
		Str("category", c.category).
		Bool("paused", c.paused).
		Msg("Added torrent to qBittorrent")
	return nil
}

// GetAllTorrents retrieves all torrents from qBittorrent
func (c *Client) GetAllTorrents(ctx context.Context) ([]*TorrentInfo, error) {
	torrents, err := c.client.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get torrents: %w", err)
	}

	c.logger.Debug().Msgf("Retrieved %d torrents from qBittorrent", len(torrents))

	results := make([]*TorrentInfo, 0, len(torrents))
	for _, t := range torrents {
		results = append(results, toTorrentInfo(t))
	}
	return results, nil
}

// GetTorrent looks a torrent up by info hash.
func (c *Client) GetTorrent(ctx context.Context, hash string) (*TorrentInfo, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if len(hash) != 40 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}

	torrents, err := c.client.GetTorrentsCtx(ctx, qbittorrent.TorrentFilterOptions{
		Hashes: []string{hash},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get torrent: %w", err)
	}
	if len(torrents) == 0 {
		return nil, ErrTorrentNotFound
	}
	return toTorrentInfo(torrents[0]), nil
}

func toTorrentInfo(t qbittorrent.Torrent) *TorrentInfo {
	info := &TorrentInfo{
		Hash:           t.Hash,
		Name:           t.Name,
		SavePath:       t.SavePath,
		ContentPath:    t.ContentPath,
		State:          string(t.State),
		Size:           t.Size,
		Progress:       t.Progress,
		DownloadedSize: t.Downloaded,
		UploadedSize:   t.Uploaded,
		Ratio:          t.Ratio,
		AddedOn:        time.Unix(t.AddedOn, 0),
		CompletionOn:   time.Unix(t.CompletionOn, 0),
		Category:       t.Category,
		Tags:           splitTags(t.Tags),
	}
	info.IsSeeding = info.IsActivelySeeding()
	return info
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// yearOf parses a release year, returning 0 when unknown.
func yearOf(s string) int {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return year
}
