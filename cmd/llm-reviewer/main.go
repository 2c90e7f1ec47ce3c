package main

import (
	"os"

	"github.com/ILoveScratch2/LLM-Reviewer/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
