package main

import "github.com/jsvoboda/face-auth/cmd"

func main() {
	cmd.Execute()
}
