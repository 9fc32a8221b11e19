package main

import "github.com/kozaktomas/derm-match/cmd"

func main() {
	cmd.Execute()
}
