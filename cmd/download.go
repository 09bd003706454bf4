package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/ptpapi/ptp"
	"github.com/s0up4200/ptpapi/qbittorrent"
)

var (
	downloadDest   string
	sendToQbit     bool
	skipDuplicates bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <[group-id/]torrent-id...>",
	Short: "Download torrent files",
	Long: `Download .torrent files by torrent id. Files are written to --dest; with
--qbittorrent they are added to the configured qBittorrent instance instead
of, or as well as, being saved. Prefixing the id with its group id lets
--qbittorrent skip releases the client already has.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&downloadDest, "dest", "d", "", "directory to save torrent files in")
	downloadCmd.Flags().BoolVar(&sendToQbit, "qbittorrent", false, "add the torrents to qBittorrent")
	downloadCmd.Flags().BoolVar(&skipDuplicates, "skip-existing", true, "with --qbittorrent, skip torrents whose release is already in the client")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if downloadDest == "" && !sendToQbit {
		downloadDest = "."
	}

	var qbit *qbittorrent.Client
	if sendToQbit {
		var err error
		qbit, err = qbittorrent.NewClient(ctx, appCfg.QBittorrent, logger, qbittorrent.WithTimeout(requestWait))
		if err != nil {
			return fmt.Errorf("failed to create qBittorrent client: %w", err)
		}
	}

	for _, arg := range args {
		groupID, id := parseDownloadArg(arg)
		if id == "" {
			return fmt.Errorf("invalid torrent id %q", arg)
		}

		destination := ""
		if downloadDest != "" {
			destination = filepath.Join(downloadDest, id+".torrent")
		}

		data, err := withRetry(ctx, clientCfg, func(ctx context.Context) ([]byte, error) {
			return ptpClient.Download(ctx, id, destination)
		})
		if err != nil {
			return fmt.Errorf("download %s: %w", id, err)
		}

		if destination != "" {
			fmt.Printf("Saved %s\n", destination)
		}

		if qbit == nil {
			continue
		}

		name := id
		if groupID != "" {
			movie, torrent, err := lookupTorrent(ctx, groupID, id)
			if err != nil {
				logger.Warn().Err(err).Str("id", id).Msg("Could not look up release")
			} else {
				name = torrent.ReleaseName
				if skipDuplicates {
					existing, err := qbit.FindRelease(ctx, movie, torrent)
					if err != nil {
						logger.Warn().Err(err).Str("id", id).Msg("Could not check qBittorrent for duplicates")
					} else if dup := strongMatch(existing); dup != nil {
						fmt.Printf("Skipped %s: already in qBittorrent as %s\n", name, dup.Torrent.Name)
						continue
					}
				}
			}
		}

		if err := qbit.AddTorrent(ctx, data, name); err != nil {
			return err
		}
		fmt.Printf("Added %s to qBittorrent\n", name)
	}

	return nil
}

// parseDownloadArg splits "group/torrent" into its ids. A bare id has no
// group.
func parseDownloadArg(arg string) (groupID, torrentID string) {
	if group, id, ok := strings.Cut(arg, "/"); ok {
		return strings.TrimSpace(group), strings.TrimSpace(id)
	}
	return "", strings.TrimSpace(arg)
}

func lookupTorrent(ctx context.Context, groupID, torrentID string) (*ptp.Movie, *ptp.Torrent, error) {
	movie, err := withRetry(ctx, clientCfg, func(ctx context.Context) (*ptp.Movie, error) {
		return ptpClient.GetMovie(ctx, groupID)
	})
	if err != nil {
		return nil, nil, err
	}
	for i := range movie.Torrents {
		if string(movie.Torrents[i].ID) == torrentID {
			return movie, &movie.Torrents[i], nil
		}
	}
	return nil, nil, fmt.Errorf("torrent %s not found in group %s", torrentID, groupID)
}

// strongMatch returns the best match when it is close enough to count as the
// same release.
func strongMatch(matches []*qbittorrent.TorrentMatch) *qbittorrent.TorrentMatch {
	const threshold = 0.95
	if len(matches) == 0 || matches[0].Score < threshold {
		return nil
	}
	return matches[0]
}
