package version

// Version is the version of the binary, set at build time.
var Version = "dev"
