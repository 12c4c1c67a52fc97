// Command deltasim runs designs described in YAML on the delta-cycle
// simulation kernel.
package main

import "github.com/sarchlab/deltasim/cmd/deltasim/cmd"

func main() {
	cmd.Execute()
}
