// Package main provides localization for the mediaplay CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Logging":       "ログ",
		"Decoder":       "デコーダー",
		"Input":         "入力",
		"Video":         "映像",
		"Audio":         "音声",
		"Output":        "出力",

		// Root command
		"Play, inspect and relay audio/video streams": "音声・映像ストリームの再生、解析、中継",

		// Commands
		"Show the streams of a media source":                                  "メディアソースのストリームを表示",
		"Decode a media source in real time into snapshots and PCM":          "メディアソースを実時間でデコードし、スナップショットとPCMに出力",
		"Relay a media source to a file or network target without decoding": "メディアソースをデコードせずにファイルまたはネットワークへ中継",
		"Show version information":                                            "バージョン情報を表示",
		"mediaplay (Go) version %s":                                           "mediaplay (Go版) バージョン %s",
		"  decoder %s: %s":                                                    "  デコーダー %s: %s",
		"available":                                                           "利用可能",
		"not available":                                                       "利用不可",

		// Global flags
		"YAML configuration file":                                            "YAML設定ファイル",
		"Log level (debug, info, warn, error)":                               "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                                            "全てのログ出力を抑制",
		"Path to the ffmpeg executable":                                      "ffmpeg実行ファイルのパス",
		"Preferred decoder backend (libavcodec, ffmpeg, libaom, jpeg, pcm)": "優先するデコーダー（libavcodec, ffmpeg, libaom, jpeg, pcm）",

		// Input flags
		"Packets read while probing stream parameters":                  "ストリーム情報の解析で読み込むパケット数",
		"Stop each stream after this many frames (0 = play to the end)": "各ストリームをこのフレーム数で停止（0 = 最後まで再生）",

		// Video flags
		"Video stream index (default: best stream)":                  "映像ストリーム番号（デフォルト: 最適なストリーム）",
		"Video stream that paces the relay (default: best stream)":   "中継のペースを決める映像ストリーム（デフォルト: 最適なストリーム）",
		"Do not play video":                                          "映像を再生しない",
		"Output pixel format (yuv420p, nv12, rgba, bgra, gray)":      "出力ピクセルフォーマット（yuv420p, nv12, rgba, bgra, gray）",
		"Output video width":                                         "出力映像の幅",
		"Output video height":                                        "出力映像の高さ",

		// Audio flags
		"Audio stream index (default: best stream)":                         "音声ストリーム番号（デフォルト: 最適なストリーム）",
		"Do not play audio":                                                 "音声を再生しない",
		"Output sample format (u8, s16, s32, flt, dbl and planar variants)": "出力サンプルフォーマット（u8, s16, s32, flt, dbl とプレーナー形式）",
		"Output sample rate in Hz":                                          "出力サンプルレート（Hz）",
		"Output channel count":                                              "出力チャンネル数",

		// Output flags
		"Directory for video snapshots":                       "映像スナップショットの保存先ディレクトリ",
		"Save one snapshot every N frames":                    "Nフレームごとにスナップショットを保存",
		"Maximum snapshot width":                              "スナップショットの最大幅",
		"Snapshot image format (jpg, png)":                    "スナップショットの画像形式（jpg, png）",
		"JPEG quality (1-100)":                                "JPEG品質（1-100）",
		"Write decoded audio to this WAV file":                "デコードした音声をこのWAVファイルに書き出す",
		"Stop after this many packets (0 = relay to the end)": "このパケット数で停止（0 = 最後まで中継）",

		// Summary output flag
		"Output execution summary to file (Markdown format)": "実行サマリーをファイルに出力（Markdown形式）",

		// Summary content
		"Run Summary":       "実行サマリー",
		"Generated":         "生成日時",
		"Command":           "コマンド",
		"Run ID":            "実行ID",
		"Source":            "入力",
		"Streams":           "ストリーム",
		"Type":              "種別",
		"Codec":             "コーデック",
		"Details":           "詳細",
		"Playback":          "再生",
		"Stream":            "ストリーム",
		"Backend":           "バックエンド",
		"Packets":           "パケット数",
		"Frames":            "フレーム数",
		"Late":              "遅延フレーム",
		"Max Lateness":      "最大遅延",
		"Failed: %s":        "失敗: %s",
		"Packet Routing":    "パケット振り分け",
		"Item":              "項目",
		"Value":             "値",
		"Packets Read":      "読み込みパケット数",
		"Packets Delivered": "配送パケット数",
		"Packets Discarded": "破棄パケット数",
		"Wall Time":         "経過時間",
		"Relay":             "中継",
		"Target":            "出力先",
		"Muxer":             "マルチプレクサ",
		"Bytes":             "バイト数",
		"Skipped":           "スキップ",
		"Outputs":           "出力ファイル",
		"None":              "なし",
		"Generated by":      "生成:",

		// Errors
		"Error: %s":                    "エラー: %s",
		"locator argument is required": "入力ロケーター引数が必要です",
		"target argument is required":  "出力先引数が必要です",
	})
}
