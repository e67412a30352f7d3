package tui

import (
	"github.com/rockiesmagicnumber/file-reorganizer/pkg/organizer"
)

type progressMsg organizer.Progress

type jobDoneMsg struct {
	res *organizer.Result
	err error
}
