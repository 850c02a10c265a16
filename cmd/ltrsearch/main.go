package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/cmd/ltrsearch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
