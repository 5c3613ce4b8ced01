// Package main runs the simkernel command line tool.
package main

import "github.com/sarchlab/simkernel/simkernel/cmd"

func main() {
	cmd.Execute()
}
