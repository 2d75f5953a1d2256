package main

import "github.com/roboskills/skillhub/cmd"

func main() {
	cmd.Execute()
}
