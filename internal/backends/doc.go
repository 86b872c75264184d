// Package backends provides the destinations the upload coordinator can
// deliver finished downloads to. Each adapter satisfies upload.Backend and
// classifies failures as transient or permanent so the retry policy can
// tell a flaky network from a missing bucket.
package backends
