// Package main is the entry point for workpool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"workpool/internal/api"
	"workpool/internal/config"
	"workpool/internal/logger"
	"workpool/internal/workload"
)

var (
	version = "dev"
)

// options はコマンドラインで指定された値
type options struct {
	configFile string
	presetName string
	workers    int
	tasks      int
	logLevel   string
	addr       string
}

func main() {
	var opts options

	// フラグ定義
	flag.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.StringVar(&opts.presetName, "preset", "", "プリセット名 (quick, squares, failing, pi, background, chaos)")
	flag.IntVar(&opts.workers, "workers", 0, "ワーカー数")
	flag.IntVar(&opts.tasks, "tasks", 0, "投入するタスク数")
	flag.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flag.StringVar(&opts.addr, "addr", "", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	var (
		listPresets = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion = flag.Bool("version", false, "バージョンを表示")
		serverMode  = flag.Bool("server", false, "インスペクタAPIサーバーモードで起動")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `workpool - Worker Pool with Futures and Graceful Shutdown

Usage:
  workpool [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # プリセットを実行
  workpool --preset failing

  # 設定ファイルから実行
  workpool --config workload.yaml

  # フラグでカスタマイズ
  workpool --preset pi --workers 8 --tasks 64

  # プリセット一覧を表示
  workpool --list-presets

  # インスペクタAPIサーバーモードで起動
  workpool --server --addr :3000
`)
	}

	flag.Parse()

	// バージョン表示
	if *showVersion {
		fmt.Printf("workpool version %s\n", version)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	fileConfig, err := loadFileConfig(opts.configFile)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	if err := configureLogger(fileConfig, opts.logLevel); err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// サーバーモード
	if *serverMode {
		addr := fileConfig.Addr()
		if opts.addr != "" {
			addr = opts.addr
		}
		if err := runServer(addr, fileConfig.Server.MetricsNamespace); err != nil {
			logger.Error("", "サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// ワークロード設定の決定
	workloadConfig, err := buildWorkloadConfig(fileConfig, opts)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// ワークロード実行
	if err := runWorkload(workloadConfig); err != nil {
		logger.Error("", "ワークロード実行エラー: %v", err)
		os.Exit(1)
	}
}

// loadFileConfig は設定ファイルを読み込んで検証する
// path が空の場合は空の設定を返す
func loadFileConfig(path string) (*config.FileConfig, error) {
	if path == "" {
		return &config.FileConfig{}, nil
	}

	fileConfig, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
	}
	if err := fileConfig.Validate(); err != nil {
		return nil, fmt.Errorf("設定検証エラー: %w", err)
	}
	return fileConfig, nil
}

// configureLogger はログレベルを設定する。フラグが設定ファイルより優先される
func configureLogger(fileConfig *config.FileConfig, flagLevel string) error {
	level, err := fileConfig.LogLevel()
	if err != nil {
		return err
	}
	if flagLevel != "" {
		if level, err = logger.ParseLevel(flagLevel); err != nil {
			return err
		}
	}
	logger.Default.SetLevel(level)
	return nil
}

// buildWorkloadConfig はワークロード設定を構築する
// 優先順位はフラグ、設定ファイル、プリセット（未指定時は quick）の順
func buildWorkloadConfig(fileConfig *config.FileConfig, opts options) (workload.Config, error) {
	var cfg workload.Config

	// 1. プリセットを基にする
	base := workload.QuickPreset()
	if opts.presetName != "" {
		preset, ok := workload.GetPreset(opts.presetName)
		if !ok {
			return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", opts.presetName, workload.ListPresets())
		}
		base = preset
	} else if preset, ok := workload.GetPreset(fileConfig.Workload.Name); ok {
		base = preset
	}

	// 2. 設定ファイルで上書き
	cfg, err := fileConfig.ApplyTo(base)
	if err != nil {
		return cfg, fmt.Errorf("設定変換エラー: %w", err)
	}

	// 3. フラグで上書き
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.tasks > 0 {
		cfg.Tasks = opts.tasks
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runWorkload はワークロードを実行する
func runWorkload(cfg workload.Config) error {
	fmt.Println("workpool - Worker Pool with Futures and Graceful Shutdown")
	fmt.Println("=========================================================")
	fmt.Printf("Workload: %s (%s)\n", cfg.Name, cfg.Workload)
	fmt.Printf("Workers: %d, Tasks: %d\n", cfg.Workers, cfg.Tasks)
	fmt.Printf("Chaos: %v\n", cfg.EnableChaos || cfg.Workload == workload.KindChaos)
	fmt.Println("=========================================================")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n中断シグナルを受信、投入済みのタスクを処理して終了中...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// ワークロード実行
	engine := workload.New(cfg)
	result, err := engine.Run(ctx)
	if result != nil {
		// レポート出力
		fmt.Println(result.Report())
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセット:")
	fmt.Println()

	for _, name := range workload.ListPresets() {
		p, _ := workload.GetPreset(name)
		fmt.Printf("  %-12s %-11s %s\n", name, p.Workload, p.Description)
	}

	fmt.Println()
	fmt.Println("使用例: workpool --preset quick")
}

// runServer はインスペクタAPIサーバーを起動する
func runServer(addr, namespace string) error {
	fmt.Println("workpool - Inspector API Server")
	fmt.Println("===============================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\n中断シグナルを受信、サーバーを終了中...")
		cancel()
	}()

	server := api.NewServer(addr, namespace)
	return server.Start(ctx)
}
