package main

import "github.com/ValentinKolb/flipcache/cmd"

func main() {
	cmd.Execute()
}
