// Package ytdlp wraps the yt-dlp CLI. The client shells out for metadata
// probing, format listing, media downloads, and sidecar artifacts, scraping
// the tool's line output for progress and classifying its failures into the
// shared service error taxonomy.
package ytdlp
