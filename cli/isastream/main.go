package main

import (
	"os"

	isastreamcmder "github.com/xenophobed/isastream/cmd/isastream"
)

func main() {
	cmd := isastreamcmder.NewIsastreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
