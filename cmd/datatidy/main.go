// Command datatidy inspects, cleans and exports CSV files on the local disk
// with the same engine the HTTP service uses.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
