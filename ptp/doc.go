// Package ptp provides a client for the PassThePopcorn tracker API.
//
// Every call goes through one pipeline: make sure a session exists (logging
// in lazily), take a token from the rate limiter, attach the session and
// credential headers, perform the exchange and classify the outcome into an
// *apierr.Error. The client never retries on its own.
//
// # Usage
//
//	cfg, err := config.Resolve(config.Sources{
//		Env: config.Environ(os.Environ()),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := ptp.NewClient(cfg, logger,
//		ptp.WithTimeout(30*time.Second),
//		ptp.WithRateLimit(5, 2),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Search(ctx, ptp.SearchParams{"searchstr": "Inception"})
//
// # Authentication
//
// Two strategies exist. API-key login is used when apiUser and apiKey are
// configured and also needs a passkey; password login needs username,
// password and passkey. SelectStrategy picks one without network access.
// Concurrent logins share a single exchange. A 401 or 403 on any request
// drops the session so the next call logs in again.
//
// # Errors
//
// Classify failures with errors.Is against the apierr sentinels:
//
//	if errors.Is(err, apierr.ErrUpstream) {
//		// a 200 response carried {"error": "..."}
//	}
package ptp
