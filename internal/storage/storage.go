package storage

import "github.com/OCAP2/physbridge/pkg/core"

// ErrNoSession is returned by record calls made outside StartSession and
// EndSession.
var ErrNoSession = core.ErrNoSession

// Backend is the interface all recorder implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Scene structure
	AddBody(b *core.Body) error
	AddConstraint(c *core.Constraint) error
	AddVehicle(v *core.Vehicle) error
	RecordRemoval(r *core.Removal) error

	// Report records
	RecordBodyState(s *core.BodyState) error
	RecordConstraintState(s *core.ConstraintState) error
	RecordWheelState(s *core.WheelState) error
	RecordCollision(c *core.Collision) error

	// Bookkeeping
	RecordCommand(c *core.CommandLog) error
	RecordStepMetric(m *core.StepMetric) error
}

// Uploadable is an optional interface for backends that produce a file
// the web API accepts.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
