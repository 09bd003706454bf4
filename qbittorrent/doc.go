// Package qbittorrent hands torrents fetched from PassThePopcorn to a
// qBittorrent instance.
//
// It wraps autobrr/go-qbittorrent. Before adding a torrent the caller can
// ask FindExisting whether the client already holds a release that looks
// the same, matched by title tokens, year and size.
//
// # Usage
//
//	client, err := qbittorrent.NewClient(ctx, app.QBittorrent, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	matches, err := client.FindExisting(ctx, movie.DisplayTitle(), 1995, int64(torrent.Size))
//	if len(matches) == 0 {
//	    err = client.AddTorrent(ctx, data, torrent.ReleaseName)
//	}
package qbittorrent
