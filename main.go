// File: main.go
package main

import (
	"context"
	"errors"
	"os"

	"github.com/xkilldash9x/panelgate/cmd"
)

func main() {
	ctx := context.Background()
	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
