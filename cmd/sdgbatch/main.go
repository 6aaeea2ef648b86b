// Command sdgbatch classifies a CSV of thesis abstracts in bulk, lets a reviewer
// inspect and edit the results, and saves them to the record index.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
