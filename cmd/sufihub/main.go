// Command sufihub serves the Sufi Hub API and runs its maintenance tasks.
//
//	sufihub serve            # HTTP API (default)
//	sufihub migrate          # create or update the schema
//	sufihub sweep-messages   # purge messages both sides deleted
//	sufihub reconcile-likes  # repair drifted like counters
package main

import "github.com/tbourn/go-sufi-platform/cmd/sufihub/commands"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	commands.Execute(version)
}
