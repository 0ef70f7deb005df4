package main

import "iac-crawler/cmd"

func main() {
	cmd.Execute()
}
