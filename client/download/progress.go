package download

import (
	"fmt"
	"log/slog"
	"time"
)

// progressLog logs download progress at most once per second.
type progressLog struct {
	logger    *slog.Logger
	path      string
	startTime time.Time
	lastLog   time.Time
	done      bool
}

func (pl *progressLog) update(transferred, total int64) {
	if pl == nil || pl.done {
		return
	}

	if time.Since(pl.lastLog) >= time.Second {
		pl.lastLog = time.Now()
		pl.log("downloading", transferred, total)
	}

	if total > 0 && transferred == total {
		pl.done = true
		pl.log("download complete", transferred, total)
	}
}

func (pl *progressLog) log(msg string, transferred, total int64) {
	elapsed := time.Since(pl.startTime)
	attrs := []any{
		"path", pl.path,
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", transferred,
		"total", total,
		"mbps", fmt.Sprintf("%.2f", float64(transferred)/max(elapsed.Seconds(), 1e-9)/(1024*1024)),
	}
	if total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(transferred)/float64(total)*100))
	}
	pl.logger.Info(msg, attrs...)
}
