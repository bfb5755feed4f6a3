package main

import (
	"github.com/tacogips/modelres/internal/cli"
)

func main() {
	// Execute the root command
	cli.Execute()
}
