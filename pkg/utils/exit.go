package utils

import (
	"os"

	"github.com/fatih/color"
)

func CheckErrorAndExit(err error, msg string) {
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}
