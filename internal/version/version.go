package version

// Version is the crawler version reported in every delivery envelope.
// Overridden at release time with -ldflags "-X iac-crawler/internal/version.Version=...".
var Version = "0.3.0"
