package cmd

import (
	"fmt"
	"os"

	"github.com/rivertownball/riverchat/internal/corpus"
)

// runConvert converts a JSON knowledge base to plain text on stdout.
func runConvert() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: riverchat convert <input.json>")
	}
	return corpus.ConvertFile(os.Args[2], os.Stdout)
}
