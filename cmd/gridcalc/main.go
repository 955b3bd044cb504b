// gridcalc runs edit scripts against a formula grid and prints the result.
package main

import (
	"os"
)

func main() {
	os.Exit(execute())
}
