// Command docqa answers questions about a documentation page. `docqa ingest`
// builds a vector index from the page and `docqa chat` runs an interactive
// question loop over it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/docqa-go/cmd/docqa/commands"
)

func main() {
	if err := commands.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
