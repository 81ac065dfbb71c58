// The main package for the sitescraper executable.
package main

import (
	"github.com/JakeFAU/sitescraper/cmd"
)

func main() {
	cmd.Execute()
}
