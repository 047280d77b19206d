package cli

// Version is stamped at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

const modulePath = "github.com/mesh-intelligence/cakeday"

const versionTemplate = "cakeday {{.Version}}\nmodule: " + modulePath + "\n"
