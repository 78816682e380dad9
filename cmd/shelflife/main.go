// Command shelflife は賞味期限トラッカーのAPIサーバーを起動する。
//
// 使い方:
//
//	shelflife [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/shelflife/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "shelflife: %v\n", err)
		os.Exit(1)
	}
}
