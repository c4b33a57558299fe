package main

import "github.com/greatsami/g-drive-clone/cmd"

func main() {
	cmd.Execute()
}
