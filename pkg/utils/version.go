// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Set at build time via -ldflags "-X github.com/papercomputeco/cometx/pkg/utils.Version=...".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies cometx on outgoing HTTP requests.
func UserAgent() string {
	return "cometx/" + Version
}
