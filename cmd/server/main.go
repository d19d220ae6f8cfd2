// Command server は患者ダッシュボードのAPIサーバーを起動する。
//
//	server [serve]                    APIサーバーを起動する（デフォルト）
//	server migrate [up|down|version]  データベースマイグレーションを操作する
//	server healthcheck                ローカルの/healthを確認する
package main

import (
	"fmt"
	"os"

	"github.com/dskhairnar/backend-acme/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
