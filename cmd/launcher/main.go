package main

import (
	"os"

	"github.com/JakeFAU/scrapelauncher/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
