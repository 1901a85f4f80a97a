// Command pusher runs a single autoland pusher worker: it acquires an
// exclusive workdir lock, consumes landing jobs off the bus, and lands them
// against the target Mercurial repository.
package main

import (
	"log"

	"go.mozilla.org/autoland/cliapp"
)

func main() {
	if err := cliapp.PusherCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
