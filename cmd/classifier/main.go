// Command classifier runs the autoland outcome classifier: it polls the
// build API for records against tracked revisions and reports terminal
// outcomes back to the bug tracker.
package main

import (
	"log"

	"go.mozilla.org/autoland/cliapp"
)

func main() {
	if err := cliapp.ClassifierCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
