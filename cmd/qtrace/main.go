package main

import "github.com/dbsmedya/qtrace/cmd/qtrace/cmd"

func main() {
	cmd.Execute()
}
