// Command orchestrator runs the autoland orchestrator process: it polls the
// bug tracker for landing requests, dispatches jobs onto the bus, and
// aggregates pusher/classifier results into terminal request status.
package main

import (
	"log"

	"go.mozilla.org/autoland/cliapp"
)

func main() {
	if err := cliapp.OrchestratorCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
