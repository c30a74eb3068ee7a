package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/shiroemons/go-xp3/internal/xp3tool/app"
	"github.com/shiroemons/go-xp3/internal/xp3tool/config"
)

func main() {
	// コマンドライン引数の解析
	cfg, err := config.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		fmt.Fprintln(os.Stderr, "使用方法: xp3 [オプション] <入力> <出力>  (詳細は --help)")
		os.Exit(1)
	}
	if cfg.ShowHelp {
		return
	}

	// バージョン表示の処理
	config.HandleVersion(cfg.ShowVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// アプリケーションの実行
	application := app.New(cfg)
	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		stop()
		os.Exit(1)
	}
}
