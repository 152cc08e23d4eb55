// Package uwb defines the vocabulary shared between the ranging session
// manager and the platform radio stack: roles, short addresses, complex
// channels, role-specific session scopes, ranging parameters, measurement
// events and the Radio/Subscription contracts the platform implements.
//
// The package holds no state of its own. Implementations of Radio live
// elsewhere (see package sim for the in-process simulator).
package uwb
