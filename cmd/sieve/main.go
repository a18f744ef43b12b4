// Command sieve runs an incremental Sieve of Eratosthenes.
package main

import "github.com/roach88/sieve/internal/cli"

func main() {
	cli.Execute()
}
