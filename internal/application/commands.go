package application

import (
	"io"
	"time"

	"github.com/bnema/grader/internal/domain"
)

// Delivery part names, in the order a client sends them.
const (
	PartLaunchID = "launchId"
	PartPassword = "password"
	PartSID      = "sid"
	PartFile     = "file"
)

// Part is one field of a multipart delivery. FileName is set only for the
// uploaded file.
type Part struct {
	Name     string
	FileName string
	Body     io.Reader
}

func (p Part) IsFile() bool {
	return p.FileName != ""
}

// PartReader yields delivery parts in order and returns io.EOF after the
// last one. Parts are streamed: a part's Body is only valid until the next
// call.
type PartReader interface {
	NextPart() (Part, error)
}

type AssessCommand struct {
	SessionID domain.SessionID
	Parts     PartReader
}

type Settings struct {
	// DataDir hosts the per-tool file areas of tools without their own
	// data directory.
	DataDir          string
	GracePeriod      time.Duration
	DegradedWindow   time.Duration
	CorrectorTimeout time.Duration
	MaxUploadKB      int
	MaxOutputKB      int
}

const (
	DefaultGracePeriod    = 5 * time.Second
	DefaultDegradedWindow = 2 * DefaultGracePeriod
	DefaultMaxUploadKB    = 1024
	DefaultMaxOutputKB    = 256
)

func (s Settings) withDefaults() Settings {
	if s.GracePeriod <= 0 {
		s.GracePeriod = DefaultGracePeriod
	}
	if s.DegradedWindow <= 0 {
		s.DegradedWindow = DefaultDegradedWindow
	}
	if s.MaxUploadKB <= 0 {
		s.MaxUploadKB = DefaultMaxUploadKB
	}
	if s.MaxOutputKB <= 0 {
		s.MaxOutputKB = DefaultMaxOutputKB
	}
	return s
}
