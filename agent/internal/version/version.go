// Package version holds the agent build identity.
package version

// Version is reported as agent.version in every envelope. Release builds
// override it with -ldflags "-X github.com/mongorelic/mongorelic/agent/internal/version.Version=...".
var Version = "0.1.0"
