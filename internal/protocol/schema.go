package protocol

import "fmt"

// ReportKind tags a report buffer. The value is written in the first
// header slot.
type ReportKind int

const (
	ReportWorld ReportKind = iota
	ReportCollision
	ReportVehicle
	ReportConstraint
)

// HeaderSize is the number of slots before the first record: kind, count.
const HeaderSize = 2

// Schema describes the fixed record layout of one report kind.
type Schema struct {
	Kind   ReportKind
	Name   string
	Fields []string
}

// Stride is the number of slots per record.
func (s Schema) Stride() int { return len(s.Fields) }

// Field returns the slot offset of name inside a record, or -1.
func (s Schema) Field(name string) int {
	for i, f := range s.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

var schemas = [...]Schema{
	ReportWorld: {
		Kind: ReportWorld,
		Name: "world",
		Fields: []string{
			"id",
			"px", "py", "pz",
			"qx", "qy", "qz", "qw",
			"lvx", "lvy", "lvz",
			"avx", "avy", "avz",
		},
	},
	ReportCollision: {
		Kind:   ReportCollision,
		Name:   "collision",
		Fields: []string{"idA", "idB", "nx", "ny", "nz"},
	},
	ReportVehicle: {
		Kind: ReportVehicle,
		Name: "vehicle",
		Fields: []string{
			"vehicleId", "wheel",
			"px", "py", "pz",
			"qx", "qy", "qz", "qw",
		},
	},
	ReportConstraint: {
		Kind:   ReportConstraint,
		Name:   "constraint",
		Fields: []string{"id", "idA", "px", "py", "pz", "impulse"},
	},
}

// ReportKinds lists every kind in the order reports are published.
var ReportKinds = []ReportKind{ReportVehicle, ReportCollision, ReportConstraint, ReportWorld}

// SchemaOf panics for an unknown kind.
func SchemaOf(k ReportKind) Schema {
	if k < 0 || int(k) >= len(schemas) {
		panic(fmt.Sprintf("protocol: unknown report kind %d", int(k)))
	}
	return schemas[k]
}

func (k ReportKind) Stride() int { return SchemaOf(k).Stride() }

func (k ReportKind) String() string {
	if k < 0 || int(k) >= len(schemas) {
		return fmt.Sprintf("ReportKind(%d)", int(k))
	}
	return schemas[k].Name
}
