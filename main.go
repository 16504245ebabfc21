package main

import "github.com/deploymenttheory/go-dvdread/cmd"

func main() {
	cmd.Execute()
}
