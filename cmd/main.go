package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Stderr.WriteString("examintel: " + err.Error() + "\n")
		os.Exit(1)
	}
}
