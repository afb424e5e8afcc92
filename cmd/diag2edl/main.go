package main

import "github.com/OpenTraceLab/OpenTraceEDL/cmd/diag2edl/cmd"

func main() {
	cmd.Execute()
}
