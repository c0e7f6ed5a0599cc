// The versectl command implements the Versewall control CLI
package main

import (
	"github.com/versewall/versewall/internal/versectl/cmd"
)

func main() {
	cmd.Execute()
}
