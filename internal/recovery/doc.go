// Package recovery は失敗した計算の自動再試行機能を提供する。
//
// Managerは結果付きの計算をラップし、エラーが返った場合に
// 指数バックオフで再試行する。カオスインジェクターが注入した
// エラーからの復旧に使う。
//
// # 機能
//
// - 再試行: MaxRetries 回までエラーの計算をやり直す
// - バックオフ: RetryDelay に Backoff を掛けながら待機時間を伸ばす
// - 統計: 再試行回数、復旧成功数、復旧失敗数
//
// パニックは再試行の対象外で、ワーカープールのエラー境界がそのまま受け取る。
//
// リトライ間の待機はジョブを実行しているワーカー上で行われるため、
// 待機中のワーカーは他のタスクを取らず、Shutdown もその完了を待つ。
//
// # 使用例
//
//	manager := recovery.New(recovery.DefaultConfig())
//	fn := recovery.Wrap(manager, chaos.WrapResult(injector, compute))
//	f, err := worker.SubmitWithResult(pool, fn)
package recovery
