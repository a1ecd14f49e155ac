package main

import "github.com/roboticsmick/spectro/cmd/spectro/cmd"

func main() {
	cmd.Execute()
}
