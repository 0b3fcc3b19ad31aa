package main

import (
	"os"

	"github.com/CamDog38/formrelay/cmd/formrelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
