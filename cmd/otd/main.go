package main

import "github.com/OpenTraceLab/OpenTraceDebug/cmd/otd/cmd"

func main() {
	cmd.Execute()
}
