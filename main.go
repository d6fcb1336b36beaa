package main

import "github.com/chadmayfield/weathercache/cmd"

func main() {
	cmd.Execute()
}
