package storage

import "github.com/OCAP2/physbridge/pkg/core"

// Nop discards everything.
type Nop struct{}

func (Nop) Init() error                                       { return nil }
func (Nop) Close() error                                      { return nil }
func (Nop) StartSession(*core.Session) error                  { return nil }
func (Nop) EndSession() error                                 { return nil }
func (Nop) AddBody(*core.Body) error                          { return nil }
func (Nop) AddConstraint(*core.Constraint) error              { return nil }
func (Nop) AddVehicle(*core.Vehicle) error                    { return nil }
func (Nop) RecordRemoval(*core.Removal) error                 { return nil }
func (Nop) RecordBodyState(*core.BodyState) error             { return nil }
func (Nop) RecordConstraintState(*core.ConstraintState) error { return nil }
func (Nop) RecordWheelState(*core.WheelState) error           { return nil }
func (Nop) RecordCollision(*core.Collision) error             { return nil }
func (Nop) RecordCommand(*core.CommandLog) error              { return nil }
func (Nop) RecordStepMetric(*core.StepMetric) error           { return nil }
