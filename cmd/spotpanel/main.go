package main

import (
	"spot-price-panel/internal/cli"
)

func main() {
	cli.Execute()
}
