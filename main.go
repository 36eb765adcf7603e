package main

import "github.com/audiolibrelab/miccapture/cmd"

func main() {
	cmd.Execute()
}
