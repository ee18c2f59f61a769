// Command archeryctl scores landmark and detection fixture files offline with the same
// analyzer and output records as the HTTP service.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("archeryctl failed", "error", err)
		os.Exit(1)
	}
}
