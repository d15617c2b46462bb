package main

import "github.com/dexfoundry/feesplitd/internal/cli"

func main() {
	cli.Execute()
}
