package main

import (
	"os"

	"github.com/spigell/internship-recommender/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
