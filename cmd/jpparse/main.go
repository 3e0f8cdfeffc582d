// Command jpparse parses JMESPath expressions and prints their syntax trees.
//
// Usage:
//
//	jpparse parse 'people[?age > `20`].name'
//	jpparse parse --raw --format tree 'a[*].b | c'
//	jpparse check queries.txt
//	jpparse functions
//	jpparse repl
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
