package eventlog

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create event log CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create event log CBOR decoder mode: %v", err))
	}
}

// Encode encodes a single event.
func Encode(ev Event) ([]byte, error) {
	return encMode.Marshal(ev)
}

// Decode decodes a single event.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := decMode.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// ReadAll decodes a stream of concatenated events until EOF.
func ReadAll(r io.Reader) ([]Event, error) {
	dec := decMode.NewDecoder(r)

	var events []Event
	for {
		var ev Event
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("event %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
}
