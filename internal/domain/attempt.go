package domain

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// AttemptSchemaVersion is embedded in every secured attempt reference. Bump it
// whenever the persisted Attempt layout changes so older references stop
// resolving.
const AttemptSchemaVersion = 3

const (
	OutputSuffix = ".output"
	ErrorSuffix  = ".error"

	storageTimeLayout = "20060102T150405Z"
)

type ResourceUserID string

// ResourceUser is the tenant context a delivery belongs to.
type ResourceUser struct {
	ID             ResourceUserID
	UserID         string
	ToolName       string
	ToolKeyID      ToolKeyID
	ResourceLinkID string
	ContextID      string
}

type Attempt struct {
	SerialID             int64
	ResourceUser         ResourceUser
	OriginalResourceUser ResourceUser
	CreatedAt            time.Time
	FileName             string
	FileSaved            bool
	OutputSaved          bool
	Score                int
	ErrorCode            int
}

func NewAttempt(user ResourceUser, fileName string, createdAt time.Time) Attempt {
	return Attempt{
		ResourceUser:         user,
		OriginalResourceUser: user,
		FileName:             fileName,
		CreatedAt:            createdAt,
	}
}

// IsReassessment reports whether the attempt credits a delivery that was
// originally made under another resource user.
func (a Attempt) IsReassessment() bool {
	return a.OriginalResourceUser.ID != a.ResourceUser.ID
}

// StorageID names the delivered file inside the owner's folder. The creation
// instant keeps nanosecond precision so two deliveries of the same file name
// by the same user do not collide.
func (a Attempt) StorageID() string {
	created := a.CreatedAt.UTC()
	return fmt.Sprintf("%s%09d[%s]%s",
		created.Format(storageTimeLayout),
		created.Nanosecond(),
		url.QueryEscape(a.OriginalResourceUser.UserID),
		url.QueryEscape(a.FileName),
	)
}

func (a Attempt) UserFolder(dataDir string) string {
	return filepath.Join(dataDir, url.QueryEscape(a.OriginalResourceUser.UserID))
}

func (a Attempt) FilePath(dataDir string) string {
	return filepath.Join(a.UserFolder(dataDir), a.StorageID())
}

func (a Attempt) OutputPath(dataDir string) string {
	return a.FilePath(dataDir) + OutputSuffix
}

// CreatedMillis is the verifier bound into secured references.
func (a Attempt) CreatedMillis() int64 {
	return a.CreatedAt.UnixMilli()
}

func (a Attempt) Failed() bool {
	return a.ErrorCode > MaxScore
}
