package main

import "github.com/winxlab/winx/app/cmd"

func main() {
	cmd.Execute()
}
