package main

import (
	"os"

	"setupwiz/internal/app"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

func main() {
	app.SetVersion(version)
	os.Exit(app.Run(os.Args[1:]))
}
