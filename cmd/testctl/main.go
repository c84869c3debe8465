package main

import (
	"os"

	"inferd/internal/testctl"
)

func main() { os.Exit(testctl.Main()) }
