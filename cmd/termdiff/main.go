// Command termdiff renders Lua-painted frames through the termdiff engine.
package main

import "github.com/dshills/termdiff/internal/cli"

func main() {
	cli.Execute()
}
