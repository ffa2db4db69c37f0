package main

import "github.com/devicelab-dev/guilocator/pkg/cli"

func main() {
	cli.Execute()
}
