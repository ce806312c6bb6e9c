package main

import "github.com/nodaluxe/ms-go-checkout/cmd"

func main() {
	cmd.Execute()
}
