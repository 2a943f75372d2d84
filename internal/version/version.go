package version

// Version is set at build time with -ldflags "-X github.com/bnema/mirrorctl/internal/version.Version=...".
var Version = "dev"
