package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownCommand is returned when decoding a name with no command type.
var ErrUnknownCommand = errors.New("unknown command")

type envelope struct {
	Name    string             `msgpack:"name"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

type decodeFunc func([]byte) (Command, error)

func decoder[T Command]() decodeFunc {
	return func(b []byte) (Command, error) {
		var v T
		if err := msgpack.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

var decoders = map[string]decodeFunc{}

func register[T Command]() {
	var zero T
	decoders[zero.Name()] = decoder[T]()
}

func init() {
	register[Init]()
	register[RegisterMaterial]()
	register[UnregisterMaterial]()
	register[SetFixedTimeStep]()
	register[SetGravity]()
	register[Simulate]()
	register[SimulationResume]()
	register[AddObject]()
	register[RemoveObject]()
	register[UpdateTransform]()
	register[UpdateMass]()
	register[ApplyCentralImpulse]()
	register[ApplyImpulse]()
	register[ApplyCentralForce]()
	register[ApplyForce]()
	register[SetAngularVelocity]()
	register[SetLinearVelocity]()
	register[SetAngularFactor]()
	register[SetLinearFactor]()
	register[SetDamping]()
	register[SetCcdMotionThreshold]()
	register[SetCcdSweptSphereRadius]()
	register[AddConstraint]()
	register[RemoveConstraint]()
	register[ConstraintSetBreakingImpulseThreshold]()
	register[HingeSetLimits]()
	register[HingeEnableAngularMotor]()
	register[HingeDisableMotor]()
	register[SliderSetLimits]()
	register[SliderSetRestitution]()
	register[SliderEnableLinearMotor]()
	register[SliderDisableLinearMotor]()
	register[SliderEnableAngularMotor]()
	register[SliderDisableAngularMotor]()
	register[ConeTwistSetLimit]()
	register[ConeTwistEnableMotor]()
	register[ConeTwistSetMaxMotorImpulse]()
	register[ConeTwistSetMotorTarget]()
	register[ConeTwistDisableMotor]()
	register[DofSetLinearLowerLimit]()
	register[DofSetLinearUpperLimit]()
	register[DofSetAngularLowerLimit]()
	register[DofSetAngularUpperLimit]()
	register[DofEnableAngularMotor]()
	register[DofConfigureAngularMotor]()
	register[DofDisableAngularMotor]()
	register[AddVehicle]()
	register[RemoveVehicle]()
	register[AddWheel]()
	register[SetSteering]()
	register[SetBrake]()
	register[ApplyEngineForce]()
}

// Recordable reports whether a command belongs in a command log.
// ReturnBuffer only moves memory around and is never recorded.
func Recordable(cmd Command) bool {
	_, ok := decoders[cmd.Name()]
	return ok
}

// Marshal encodes cmd as a {name, payload} envelope.
func Marshal(cmd Command) ([]byte, error) {
	payload, err := msgpack.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", cmd.Name(), err)
	}
	return msgpack.Marshal(envelope{Name: cmd.Name(), Payload: payload})
}

// Unmarshal decodes an envelope produced by Marshal.
func Unmarshal(data []byte) (Command, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return decodeEnvelope(env)
}

func decodeEnvelope(env envelope) (Command, error) {
	dec, ok := decoders[env.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, env.Name)
	}
	cmd, err := dec(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", env.Name, err)
	}
	return cmd, nil
}

// LogWriter appends commands to a msgpack stream.
type LogWriter struct {
	enc *msgpack.Encoder
	n   int
}

func NewLogWriter(w io.Writer) *LogWriter {
	return &LogWriter{enc: msgpack.NewEncoder(w)}
}

// Write skips commands that are not Recordable.
func (l *LogWriter) Write(cmd Command) error {
	if !Recordable(cmd) {
		return nil
	}
	payload, err := msgpack.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", cmd.Name(), err)
	}
	if err := l.enc.Encode(envelope{Name: cmd.Name(), Payload: payload}); err != nil {
		return err
	}
	l.n++
	return nil
}

// Count returns the number of commands written.
func (l *LogWriter) Count() int { return l.n }

// ReadLog calls fn for every command in a stream written by LogWriter.
func ReadLog(r io.Reader, fn func(Command) error) error {
	dec := msgpack.NewDecoder(r)
	for {
		var env envelope
		if err := dec.Decode(&env); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading command log: %w", err)
		}
		cmd, err := decodeEnvelope(env)
		if err != nil {
			return err
		}
		if err := fn(cmd); err != nil {
			return err
		}
	}
}
