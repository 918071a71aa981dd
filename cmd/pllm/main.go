// Command pllm drives a terminal session toward a mission with a language
// model.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		fatal(err)
		os.Exit(1)
	}
}
