// Command das-smt maintains the off-chain sub-account tree of one parent
// account in a bbolt datadir. It prints the roots and proofs that transaction
// builders put into sub-account witnesses.
//
//	das-smt -parent parent.bit [flags] root
//	das-smt -parent parent.bit [flags] insert <sub-account> <value>
//	das-smt -parent parent.bit [flags] remove <sub-account>
//	das-smt -parent parent.bit [flags] prove <sub-account>
//	das-smt -parent parent.bit [flags] list
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
