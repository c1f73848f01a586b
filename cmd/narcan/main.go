package main

import "github.com/danielpatrickdp/narcan-finder/internal/cmd"

func main() {
	cmd.Execute()
}
