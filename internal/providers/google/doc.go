// Package google provides shared infrastructure for the Google-backed
// providers (drive, gmail, calendar, contacts): service factories, a
// config-driven oauth2 token source, error classification for common
// Google API failures (401, 403, 404, 410, 429), and per-service rate
// limiting.
package google
