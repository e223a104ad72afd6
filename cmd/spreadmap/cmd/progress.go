package cmd

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/MeKo-Tech/spreadmap/internal/batch"
)

// barProgress renders extraction progress as a terminal progress bar.
type barProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

var _ batch.ProgressCallback = (*barProgress)(nil)

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{w: w}
}

func (p *barProgress) OnStart(total int) {
	p.bar = progressbar.NewOptions64(
		int64(total),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("extracting PLUs"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("tiles"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *barProgress) OnProgress(current, total int) {
	if p.bar == nil {
		return
	}
	if int64(total) != p.bar.GetMax64() {
		p.bar.ChangeMax64(int64(total))
	}
	_ = p.bar.Set64(int64(current))
}

func (p *barProgress) OnError(int, error) {}

func (p *barProgress) OnComplete(batch.Summary) {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
