package main

import "reward-settler/cmd"

func main() {
	cmd.Execute()
}
