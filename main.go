package main

import "github.com/shibakov/calroies-info-ms/cmd/calories"

func main() {
	calories.Execute()
}
