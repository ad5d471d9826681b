package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Opening %s":                         "%s を開いています",
		"Opened %s with %d streams":          "%s を開きました (%d ストリーム)",
		"Output saved to %s":                 "出力を %s に保存しました",
		"Summary saved to %s":                "サマリーを %s に保存しました",
		"Saved %d snapshots to %s":           "%d 枚のスナップショットを %s に保存しました",
		"Audio saved to %s":                  "音声を %s に保存しました",
		"Video: %d frames, %d late (max %s)": "映像: %d フレーム, 遅延 %d (最大 %s)",
		"Audio: %d frames":                   "音声: %d フレーム",
		"Playback completed in %s":           "再生が %s で完了しました",
		"Playback interrupted":               "再生が中断されました",
		"Relayed %d packets (%d bytes) in %s": "%d パケット (%d バイト) を %s で中継しました",
		"Relay interrupted":                  "中継が中断されました",
		"Interrupted, shutting down...":      "中断されました。シャットダウン中...",

		// Source
		"Opened %s (%s) with %d streams":             "%s (%s) を開きました (%d ストリーム)",
		"Ignoring stream index %d (stream count %d)": "ストリーム番号 %d を無視します (ストリーム数 %d)",
		"Read failed, treating as end of stream: %s": "読み込みに失敗したためストリーム終端として扱います: %s",

		// Probe stage
		"Selected video stream %d and audio stream %d": "映像ストリーム %d と音声ストリーム %d を選択しました",

		// Play stage
		"Playing video stream %d (%s, %dx%d %s)": "映像ストリーム %d を再生中 (%s, %dx%d %s)",
		"Playing audio stream %d (%s)":           "音声ストリーム %d を再生中 (%s)",
		"Stream %d ended after %d frames":        "ストリーム %d は %d フレームで終了しました",
		"Packet queues hold %d packets; a consumer is falling behind": "パケットキューに %d パケットが滞留しています。処理が追いついていません",

		// Relay stage
		"Relaying %s to %s (%s)":                  "%s を %s へ中継中 (%s)",
		"Relayed %d packets (%d bytes), skipped %d": "%d パケット (%d バイト) を中継し, %d をスキップしました",
		"Skipping stream %d in output: %s":        "出力でストリーム %d をスキップします: %s",

		// Decode session
		"Opened %s decoder for stream %d using %s":    "ストリーム %[2]d の %[1]s デコーダーを %[3]s で開きました",
		"Started ffmpeg %s decoder for stream %d":     "ストリーム %[2]d の ffmpeg %[1]s デコーダーを起動しました",
		"Decoder backend %s is not available":         "デコーダーバックエンド %s は利用できません",
		"Skipped malformed packet on stream %d: %s":   "ストリーム %d の不正なパケットをスキップしました: %s",
		"Dropped undecodable frame on stream %d: %s":  "ストリーム %d のデコードできないフレームを破棄しました: %s",
		"Codec flush failed on stream %d: %s":         "ストリーム %d のコーデックのフラッシュに失敗しました: %s",

		// Containers
		"Stream %d uses unmapped codec %s":               "ストリーム %d は未対応のコーデック %s を使用しています",
		"Stream %d parameters unknown after probing":     "プローブ後もストリーム %d のパラメータが不明です",
		"Ignoring PID %d with stream type %d":            "ストリームタイプ %[2]d の PID %[1]d を無視します",
		"Cannot parse SPS on stream %d: %s":              "ストリーム %d の SPS を解析できません: %s",
		"Cannot parse ADTS header on stream %d: %s":      "ストリーム %d の ADTS ヘッダーを解析できません: %s",
		"Cannot frame AAC sample: %s":                    "AAC サンプルをフレーム化できません: %s",
		"Skipping fragment %d with %d tracks":            "%[2]d トラックを含むフラグメント %[1]d をスキップします",
		"Skipping unreadable sample %d of track %d: %s":  "トラック %[2]d のサンプル %[1]d を読み込めないためスキップします: %[3]s",

		// Errors
		"Failed to open source: %s":    "ソースを開けませんでした: %s",
		"Failed to create sinks: %s":   "出力先の作成に失敗しました: %s",
		"Failed to play: %s":           "再生に失敗しました: %s",
		"Failed to finish output: %s":  "出力の完了に失敗しました: %s",
		"Failed to relay: %s":          "中継に失敗しました: %s",
		"Failed to write summary: %s":  "サマリーの書き込みに失敗しました: %s",
		"Cannot play video stream %d: %s": "映像ストリーム %d を再生できません: %s",
		"Cannot play audio stream %d: %s": "音声ストリーム %d を再生できません: %s",
	})
}
