package ranging

import (
	"strconv"
	"strings"

	"github.com/srg/uwbctl/internal/uwb"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// NotInitialized is what LocalInfo renders as before a role has been set.
const NotInitialized = "not initialized"

// LocalInfo describes the local side of the session.
type LocalInfo struct {
	Initialized bool
	Role        uwb.Role
	Address     uwb.Address
	// Channel and Preamble are what is in effect: the assigned channel for a
	// controller, the last published stream values for a controlee.
	Channel  string
	Preamble string
	// Capabilities is only set for a controlee.
	Capabilities *uwb.Capabilities
}

// Fields returns the info as ordered label/value pairs. It is empty when the
// session is not initialized.
func (i LocalInfo) Fields() *orderedmap.OrderedMap[string, string] {
	fields := orderedmap.New[string, string]()
	if !i.Initialized {
		return fields
	}

	fields.Set("Role", i.Role.String())
	fields.Set("Address", i.Address.String())
	fields.Set("Channel", i.Channel)
	fields.Set("Preamble", i.Preamble)
	if c := i.Capabilities; c != nil {
		fields.Set("Supports Distance", strconv.FormatBool(c.Distance))
		fields.Set("Supports Azimuth", strconv.FormatBool(c.Azimuth))
		fields.Set("Supports Elevation", strconv.FormatBool(c.Elevation))
	}
	return fields
}

// String renders the role on the first line followed by one "Label: value"
// line per field.
func (i LocalInfo) String() string {
	if !i.Initialized {
		return NotInitialized
	}

	var b strings.Builder
	b.WriteString(i.Role.String())
	for pair := i.Fields().Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "Role" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(pair.Key)
		b.WriteString(": ")
		b.WriteString(pair.Value)
	}
	return b.String()
}
