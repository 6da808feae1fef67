package main

import "github.com/CosmoTheDev/anonscan/cmd"

func main() {
	cmd.Execute()
}
