package main

import "github.com/KaramelBytes/microlens-cli/cmd"

func main() {
	cmd.Execute()
}
