package qbittorrent

import (
	"path"
	"time"
)

// TorrentInfo contains information about a torrent
type TorrentInfo struct {
	Hash           string
	Name           string
	SavePath       string
	ContentPath    string
	State          string
	Size           int64
	Progress       float64
	DownloadedSize int64
	UploadedSize   int64
	Ratio          float64
	AddedOn        time.Time
	CompletionOn   time.Time
	Category       string
	Tags           []string
	IsSeeding      bool
}

// IsActivelySeeding checks if the torrent is actively seeding
func (t *TorrentInfo) IsActivelySeeding() bool {
	return t.State == "uploading" || t.State == "stalledUP" || t.State == "queuedUP" || t.State == "forcedUP"
}

// IsComplete reports whether the download finished.
func (t *TorrentInfo) IsComplete() bool {
	return t.Progress >= 1
}

// GetFullPath returns the full path to the torrent content
func (t *TorrentInfo) GetFullPath() string {
	if t.ContentPath != "" {
		return t.ContentPath
	}
	return path.Join(t.SavePath, t.Name)
}

// TorrentMatch is a torrent already in the client that looks like the same
// release.
type TorrentMatch struct {
	Torrent        *TorrentInfo
	Score          float64
	TitleMatch     float64
	YearMatched    bool
	SizeDifference int64
	// Exact is set when the torrent has the same info hash.
	Exact bool
}
