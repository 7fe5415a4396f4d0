// The main package for the webscreenshot executable.
package main

import (
	"os"

	"github.com/JakeFAU/webscreenshot/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	os.Exit(cmd.Execute())
}
