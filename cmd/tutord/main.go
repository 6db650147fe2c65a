package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/tutor-core/cmd/tutord/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
