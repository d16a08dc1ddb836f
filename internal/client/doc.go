// Package client implements the TopicHub interactive client: a single-
// connection session with a background reader, and the console command loop
// that drives it.
package client
