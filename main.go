package main

import "github.com/rockiesmagicnumber/file-reorganizer/cmd"

func main() {
	cmd.Execute()
}
