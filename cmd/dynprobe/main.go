// Command dynprobe inspects the platform's native loading conventions and checks that
// shared libraries load with the symbols a program expects.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
