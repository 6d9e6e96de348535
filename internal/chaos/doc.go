// Package chaos はタスクへの障害注入機能を提供する。
//
// Injectorはワーカープールに投入するタスクをラップし、確率的に
// エラー・パニック・遅延を注入する。ワーカーがタスクの失敗から
// 隔離されていること（ワーカーが落ちず、失敗が結果ハンドルに届くこと）を
// 確認するために使用される。
//
// # 障害タイプ
//
// - Error: 計算がエラーを返す（結果を持たないジョブではパニックになる）
// - Panic: 計算がパニックする
// - Delay: 計算の前に遅延を注入する
//
// # 使用例
//
//	config := chaos.DefaultConfig()
//	config.Probability = 0.2
//
//	inj := chaos.New(config)
//	f, err := worker.SubmitWithResult(pool, chaos.WrapResult(inj, compute))
package chaos
