// Entrypoint for the rfengine CLI; delegates to the Cobra root command
// in cmd/root.go.

package main

import (
	"github.com/secondsight/rfengine/cmd"
)

func main() {
	cmd.Execute()
}
