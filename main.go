// The main package for the auditor executable.
package main

import (
	"github.com/JakeFAU/lite-site-auditor/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
