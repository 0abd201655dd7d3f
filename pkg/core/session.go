// Package core holds the storage-neutral records a recorder backend
// persists for one bridge session.
package core

import (
	"errors"
	"time"
)

// Vec3 and Quat are plain arrays so records marshal the same way in JSON,
// gorm JSON columns and msgpack.
type (
	Vec3 [3]float64
	Quat [4]float64 // x, y, z, w
)

// Session is one run of a scene against an adapter.
type Session struct {
	ID            uint      `json:"id"`
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	Tag           string    `json:"tag"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	FixedTimeStep float64   `json:"fixedTimeStep"`
	Broadphase    string    `json:"broadphase"`
	Gravity       Vec3      `json:"gravity"`
	ReportSize    int       `json:"reportSize"`
}

// UploadMetadata describes an exported session file for the web API.
type UploadMetadata struct {
	SessionName     string  `json:"sessionName"`
	SessionUUID     string  `json:"sessionUuid"`
	Tag             string  `json:"tag"`
	Steps           int     `json:"steps"`
	SessionDuration float64 `json:"sessionDuration"`
}

// ErrNoSession is returned by recorders asked to store a record outside
// a started session.
var ErrNoSession = errors.New("no session started")
