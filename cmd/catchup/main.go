package main

import (
	streamcatchup "github.com/datazip-inc/streamcatchup"
)

func main() {
	streamcatchup.Execute()
}
