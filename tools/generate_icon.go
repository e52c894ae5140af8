package main

import (
	"fmt"

	"github.com/teleturbo/teleturbo/icon"
)

// Writes the application icon into the current working directory.
func main() {
	if _, err := icon.Write("."); err != nil {
		panic(err)
	}

	fmt.Println("Icon SVG created")
}
