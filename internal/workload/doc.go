// Package workload はワーカープールを駆動するワークロード実行機能を提供する。
//
// エンジンはプール、メトリクス、カオスインジェクターを組み立て、
// 指定されたワークロードを投入し、プールを停止してから結果を集計する。
//
// # ワークロード
//
// - squares: 1..N の二乗を Future 経由で受け取り、合計を検証する
// - failing: FailEvery の倍数でエラーを返す計算
// - pi: モンテカルロ法による円周率推定
// - background: 結果を返さないジョブ。完了数はシャットダウン後に数える
// - chaos: 障害注入付きの squares
//
// # プリセット
//
// quick, squares, failing, pi, background, chaos, resilient
//
// resilient は注入されたエラーを recovery パッケージの再試行で吸収する。
//
// # 使用例
//
//	config, _ := workload.GetPreset("failing")
//	engine := workload.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package workload
