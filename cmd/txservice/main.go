package main

import (
	"os"

	"txservice/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
