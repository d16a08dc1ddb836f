// Package broker implements the core of the TopicHub publish/subscribe
// broker.
//
// The implementation is organized into specialized files for configuration,
// the session and topic registries, command dispatch, connection handling,
// and the WebSocket access path to keep the codebase maintainable and
// testable as the project grows.
package broker
