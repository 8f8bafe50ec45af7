package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ProgressUpdate is one scraped progress event.
type ProgressUpdate struct {
	Stage   string
	Percent float64
	ETA     string
	Rate    string
}

const (
	// StageDownloading covers the fragment download phase.
	StageDownloading = "downloading"
	// StageMerging covers the post-download stream merge.
	StageMerging = "merging"
)

var (
	percentRe     = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)
	etaRe         = regexp.MustCompile(`ETA\s+([\d:]+)`)
	rateRe        = regexp.MustCompile(`(\d+(?:\.\d+)?\s*[KMGT]?i?B/s)`)
	destinationRe = regexp.MustCompile(`\[download\]\s+Destination:\s+(.+)`)
	mergerRe      = regexp.MustCompile(`\[Merger\]\s+Merging formats into\s+"(.+)"`)
	alreadyRe     = regexp.MustCompile(`\[download\]\s+(.+?)\s+has already been downloaded`)
	subtitleRe    = regexp.MustCompile(`Writing video subtitles to:\s+(.+)`)
	thumbnailRe   = regexp.MustCompile(`Writing thumbnail to:\s+(.+)`)
)

// throttleInterval is the minimum spacing between emissions when the percent
// has not advanced by a whole point.
const throttleInterval = 500 * time.Millisecond

// progressTracker turns raw output lines into throttled, monotonically
// non-decreasing progress emissions. yt-dlp restarts its percent counter for
// each stream it downloads, so the tracker never lets a later, lower reading
// walk the reported progress backwards.
type progressTracker struct {
	emit func(ProgressUpdate)
	now  func() time.Time

	highWater float64
	lastEmit  time.Time
	lastSent  float64
	emitted   bool
	merging   bool
}

func newProgressTracker(emit func(ProgressUpdate), now func() time.Time) *progressTracker {
	if now == nil {
		now = time.Now
	}
	return &progressTracker{emit: emit, now: now}
}

// observe feeds one output line into the tracker.
func (p *progressTracker) observe(line string) {
	if p.emit == nil {
		return
	}
	if mergerRe.MatchString(line) || strings.Contains(line, "Merging") {
		p.merging = true
		p.emit(ProgressUpdate{Stage: StageMerging, Percent: p.highWater})
		return
	}

	match := percentRe.FindStringSubmatch(line)
	if match == nil {
		return
	}
	percent, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < p.highWater {
		return
	}
	p.highWater = percent

	update := ProgressUpdate{Stage: StageDownloading, Percent: percent}
	if eta := etaRe.FindStringSubmatch(line); eta != nil {
		update.ETA = eta[1]
	}
	if rate := rateRe.FindStringSubmatch(line); rate != nil {
		update.Rate = rate[1]
	}

	now := p.now()
	if p.emitted && percent-p.lastSent < 1.0 && now.Sub(p.lastEmit) < throttleInterval {
		return
	}
	p.emitted = true
	p.lastSent = percent
	p.lastEmit = now
	p.emit(update)
}

// finish reports the terminal 100% emission after a successful run.
func (p *progressTracker) finish() {
	if p.emit == nil {
		return
	}
	stage := StageDownloading
	if p.merging {
		stage = StageMerging
	}
	p.emit(ProgressUpdate{Stage: stage, Percent: 100})
}
