package version

// Version is overridden at build time via -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"
