package main

import "github.com/Luganodes/Solana-Indexer/internal/cli"

func main() {
	cli.Execute()
}
