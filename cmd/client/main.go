package main

import "github.com/eleven-am/vision-client/internal/bootstrap"

func main() {
	bootstrap.Run()
}
